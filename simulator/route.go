package simulator

import (
	"cmp"

	"github.com/canopy-network/bftsim/lib"
)

// Envelope is an entry of an inbound queue: an engine message and the node that emitted it
type Envelope[N cmp.Ordered] struct {
	Sender  N
	Message lib.MessageI
}

// RoutePendingMessages() drains the outbound queue of every member in ascending order and delivers each message
// a unicast is delivered to its recipient, a broadcast to every current member except the sender with a clone per recipient
// the relative order of one sender's messages is preserved at every recipient
func (s *Simulator[C, N]) RoutePendingMessages() (delivered int) {
	for _, id := range s.order {
		for msg := range s.sessions[id].PeerOutQueue().Drain() {
			delivered += s.route(msg)
		}
	}
	return
}

// route() expands the target of a single message into inbound queue entries
func (s *Simulator[C, N]) route(msg lib.TargetedMessage[N]) (delivered int) {
	if recipient, ok := msg.Target.Node(); ok {
		q, found := s.inbound[recipient]
		if !found {
			s.log.Warn(ErrUnknownRecipient(msg.Sender, recipient).Error())
			return 0
		}
		q.Push(Envelope[N]{Sender: msg.Sender, Message: msg.Message})
		return 1
	}
	// membership is read at delivery time so nodes added or removed since the message was emitted are honored
	for _, id := range s.order {
		if id == msg.Sender {
			continue
		}
		s.inbound[id].Push(Envelope[N]{Sender: msg.Sender, Message: msg.Message.Clone()})
		delivered++
	}
	return
}
