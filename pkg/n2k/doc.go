// Package n2k defines the canonical NMEA 2000 message model shared by the
// codec, the bus and the relay transport.
//
// Every wire dialect the relay speaks is translated to and from a single
// canonical form:
//
//	┌──────────────────────────────────────────────┐
//	│ PGN │ Priority │ Source │ Destination │ Data │
//	└──────────────────────────────────────────────┘
//
// # CAN Identifiers
//
// Dialects that carry raw CAN frames (candump, YDRAW) encode the header as a
// 29-bit extended identifier:
//
//	bits 28-26  priority
//	bit  25     extended data page
//	bit  24     data page
//	bits 23-16  PDU format (PF)
//	bits 15-8   PDU specific (PS)
//	bits 7-0    source address
//
// When PF < 240 (PDU1) the PS byte is the destination address and the low
// byte of the PGN is zero. Otherwise (PDU2) PS is part of the PGN and the
// message is addressed to all nodes (255).
//
// # Fast Packets
//
// Payloads longer than eight bytes travel as a fast-packet sequence of up to
// 32 CAN frames. See SplitFastPacket and Assembler.
package n2k
