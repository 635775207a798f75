// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"errors"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/wrappers"
)

const maxReceiptSize = 1 << 24

var errReceiptTrailingBytes = errors.New("trailing bytes after receipt")

func (r *Receipt) Bytes() ([]byte, error) {
	p := wrappers.Packer{
		MaxSize: maxReceiptSize,
		Bytes:   make([]byte, 0, 128),
	}
	p.PackFixedBytes(r.TxID[:])
	p.PackBool(r.Success)
	p.PackStr(r.Error)
	p.PackInt(uint32(len(r.Events)))
	for _, event := range r.Events {
		packEvent(&p, event)
	}
	p.PackInt(uint32(len(r.Data)))
	for _, data := range r.Data {
		p.PackBytes(data)
	}
	return p.Bytes, p.Err
}

func ParseReceipt(b []byte) (*Receipt, error) {
	p := wrappers.Packer{Bytes: b}
	r := &Receipt{}
	copy(r.TxID[:], p.UnpackFixedBytes(ids.IDLen))
	r.Success = p.UnpackBool()
	r.Error = p.UnpackStr()
	for i, n := uint32(0), p.UnpackInt(); i < n && !p.Errored(); i++ {
		r.Events = append(r.Events, unpackEvent(&p))
	}
	for i, n := uint32(0), p.UnpackInt(); i < n && !p.Errored(); i++ {
		r.Data = append(r.Data, p.UnpackBytes())
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errReceiptTrailingBytes
	}
	return r, nil
}

func packEvent(p *wrappers.Packer, event Event) {
	p.PackStr(event.Type)
	p.PackInt(uint32(len(event.Attributes)))
	for _, attr := range event.Attributes {
		p.PackStr(attr.Key)
		p.PackStr(attr.Value)
	}
	p.PackBytes(event.Data)
}

func unpackEvent(p *wrappers.Packer) Event {
	event := Event{
		Type: p.UnpackStr(),
	}
	for i, n := uint32(0), p.UnpackInt(); i < n && !p.Errored(); i++ {
		event.Attributes = append(event.Attributes, Attribute{
			Key:   p.UnpackStr(),
			Value: p.UnpackStr(),
		})
	}
	event.Data = p.UnpackBytes()
	return event
}
