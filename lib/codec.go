package lib

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"
)

/*
	Batches are serialized with the protobuf wire format (hand encoded, no generated types) so every peer derives the
	same bytes, and therefore the same digest, for the same epoch and ordered contributions:

	message Batch {
	  uint64 epoch = 1;
	  repeated bytes contributions = 2;
	}
*/

const (
	batchEpochField        protowire.Number = 1
	batchContributionField protowire.Number = 2
)

// EncodeBatch() returns the canonical protobuf wire encoding of an epoch and its ordered contributions
func EncodeBatch(epoch uint64, contributions [][]byte) (bz []byte) {
	// the epoch is always written so an empty batch still has a unique encoding per epoch
	bz = protowire.AppendTag(bz, batchEpochField, protowire.VarintType)
	bz = protowire.AppendVarint(bz, epoch)
	// each contribution is a length delimited field in order
	for _, c := range contributions {
		bz = protowire.AppendTag(bz, batchContributionField, protowire.BytesType)
		bz = protowire.AppendBytes(bz, c)
	}
	return
}

// DecodeBatch() parses the canonical encoding produced by EncodeBatch()
func DecodeBatch(bz []byte) (epoch uint64, contributions [][]byte, err ErrorI) {
	for len(bz) > 0 {
		// read the field tag
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return 0, nil, ErrUnmarshal(protowire.ParseError(n))
		}
		bz = bz[n:]
		switch {
		case num == batchEpochField && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(bz)
			if m < 0 {
				return 0, nil, ErrUnmarshal(protowire.ParseError(m))
			}
			epoch, bz = v, bz[m:]
		case num == batchContributionField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(bz)
			if m < 0 {
				return 0, nil, ErrUnmarshal(protowire.ParseError(m))
			}
			// copy out of the input buffer so the caller owns the contribution
			contributions, bz = append(contributions, append([]byte{}, v...)), bz[m:]
		default:
			// unknown fields are skipped like any protobuf decoder would
			m := protowire.ConsumeFieldValue(num, typ, bz)
			if m < 0 {
				return 0, nil, ErrUnmarshal(protowire.ParseError(m))
			}
			bz = bz[m:]
		}
	}
	return
}

// MarshalJSONIndent() serializes a message into an indented JSON byte slice
func MarshalJSONIndent(message any) ([]byte, ErrorI) {
	bz, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		return nil, ErrJSONMarshal(err)
	}
	return bz, nil
}

// MarshalJSONIndentString() serializes a message into an indented JSON string
func MarshalJSONIndentString(message any) (string, ErrorI) {
	bz, err := MarshalJSONIndent(message)
	return string(bz), err
}

// UnmarshalJSON() deserializes a JSON byte slice into the specified object
func UnmarshalJSON(bz []byte, ptr any) ErrorI {
	if err := json.Unmarshal(bz, ptr); err != nil {
		return ErrJSONUnmarshal(err)
	}
	return nil
}

// NewJSONFromFile() reads a json object from file
func NewJSONFromFile(ptr any, dataDirPath, filePath string) ErrorI {
	bz, err := os.ReadFile(filepath.Join(dataDirPath, filePath))
	if err != nil {
		return ErrReadFile(err)
	}
	return UnmarshalJSON(bz, ptr)
}

// SaveJSONToFile() saves a json object to a file
func SaveJSONToFile(j any, dataDirPath, filePath string) (err ErrorI) {
	bz, err := MarshalJSONIndent(j)
	if err != nil {
		return
	}
	if e := os.MkdirAll(dataDirPath, os.ModePerm); e != nil && !errors.Is(e, os.ErrExist) {
		return ErrWriteFile(e)
	}
	if e := os.WriteFile(filepath.Join(dataDirPath, filePath), bz, os.ModePerm); e != nil {
		return ErrWriteFile(e)
	}
	return
}
