// Package nmea renders NMEA 0183 sentences for a simulated GPS receiver.
//
// Every sentence is built from its comma separated body (the text between
// '$' and '*') and framed by Encode, which appends the XOR checksum and the
// CRLF terminator.
package nmea

import "fmt"

// Checksum calculates the NMEA checksum of a sentence body. The body must
// not include the leading '$' or the trailing '*'.
func Checksum(body string) string {
	var checksum byte
	for i := 0; i < len(body); i++ {
		checksum ^= body[i]
	}
	return fmt.Sprintf("%02X", checksum)
}

// Encode formats a complete NMEA sentence with checksum and CRLF.
func Encode(body string) string {
	return "$" + body + "*" + Checksum(body) + "\r\n"
}
