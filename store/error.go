package store

import (
	"fmt"

	"github.com/canopy-network/bftsim/lib"
)

func ErrOpenDB(err error) lib.ErrorI {
	return lib.NewError(lib.CodeOpenDB, lib.StoreModule, fmt.Sprintf("openDB() failed with err: %s", err.Error()))
}

func ErrCloseDB(err error) lib.ErrorI {
	return lib.NewError(lib.CodeCloseDB, lib.StoreModule, fmt.Sprintf("closeDB() failed with err: %s", err.Error()))
}

func ErrStoreSet(err error) lib.ErrorI {
	return lib.NewError(lib.CodeStoreSet, lib.StoreModule, fmt.Sprintf("store.set() failed with err: %s", err.Error()))
}

func ErrStoreGet(err error) lib.ErrorI {
	return lib.NewError(lib.CodeStoreGet, lib.StoreModule, fmt.Sprintf("store.get() failed with err: %s", err.Error()))
}

func ErrStoreIter(err error) lib.ErrorI {
	return lib.NewError(lib.CodeStoreIter, lib.StoreModule, fmt.Sprintf("store.iterate() failed with err: %s", err.Error()))
}

func ErrInvalidDBKey() lib.ErrorI {
	return lib.NewError(lib.CodeInvalidDBKey, lib.StoreModule, "found store key is invalid")
}

func ErrCorruptedBatch(node string, epoch uint64, err error) lib.ErrorI {
	return lib.NewError(lib.CodeCorruptedBatch, lib.StoreModule, fmt.Sprintf("stored batch %d of %s is corrupted: %s", epoch, node, err.Error()))
}
