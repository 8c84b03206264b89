// Package codec translates between the canonical n2k.Message and the text
// dialects spoken by NMEA 2000 gateways.
//
// # Dialects
//
//	actisense            2017-03-13T01:00:00.146Z,2,127245,204,255,8,fc,f8,ff,7f,ff,7f,ff,ff
//	actisense-n2k-ascii  A173321.107 05FF2 1F112 0102
//	ydraw                21:00:29.113 R 09F80115 00 82 0B 00 00 00 00 00
//	pcdin                $PCDIN,01F119,00000000,0F,2AAF00D1067414FF*59
//	mxpgn                $MXPGN,01F801,2801,C1308AC40C5DE343*19
//	ikonvert             !PDGY,127250,2,5,255,61229.113,AQI=
//	candump1             <0x09f11205> [2] 01 02
//	candump2             can0  09F11205   [2]  01 02
//	candump3             (1502979132.106111) can0 09F11205#0102
//
// Encoding is per format (Encode). Decoding is content-detected (Parse): a
// line is recognised by its shape, not by any configured format, so a peer
// may send one dialect while receiving another.
//
// Frame-based dialects (ydraw, mxpgn, candump*) carry one CAN frame per
// line. Payloads longer than eight bytes are split into fast-packet frames
// on encode; Parse returns the individual frame and n2k.Assembler restores
// the full payload.
//
// All functions are pure apart from the shared fast-packet sequence counter.
package codec
