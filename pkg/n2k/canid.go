package n2k

// Header is the addressing information carried in a 29-bit CAN identifier.
type Header struct {
	PGN         uint32
	Priority    uint8
	Source      uint8
	Destination uint8
}

// EncodeCANID packs a header into a 29-bit extended CAN identifier.
func EncodeCANID(h Header) uint32 {
	pgn := h.PGN & MaxPGN
	pf := (pgn >> 8) & 0xFF
	id := uint32(h.Priority&0x7)<<26 | (pgn>>16)<<24 | pf<<16 | uint32(h.Source)
	if pf < 240 {
		id |= uint32(h.Destination) << 8
	} else {
		id |= (pgn & 0xFF) << 8
	}
	return id
}

// DecodeCANID unpacks a 29-bit extended CAN identifier.
func DecodeCANID(id uint32) Header {
	pf := (id >> 16) & 0xFF
	ps := (id >> 8) & 0xFF
	dp := (id >> 24) & 0x3

	h := Header{
		Priority: uint8((id >> 26) & 0x7),
		Source:   uint8(id & 0xFF),
	}
	if pf < 240 {
		h.Destination = uint8(ps)
		h.PGN = dp<<16 | pf<<8
	} else {
		h.Destination = BroadcastAddress
		h.PGN = dp<<16 | pf<<8 | ps
	}
	return h
}
