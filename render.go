package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"rvasm/assembler"
)

// nibbles splits a 32-char bit string into tab separated groups of four.
func nibbles(bits string) string {
	groups := make([]string, 0, len(bits)/4)
	for i := 0; i < len(bits); i += 4 {
		groups = append(groups, bits[i:min(i+4, len(bits))])
	}
	return strings.Join(groups, "\t")
}

func render(w io.Writer, words []assembler.Word, format string, nibble bool, au aurora.Aurora) error {
	bw := bufio.NewWriter(w)
	switch format {
	case "listing":
		for _, word := range words {
			fmt.Fprintf(bw, "%s: %08x\n", au.Cyan(fmt.Sprintf("%04x", word.Addr)), word.Bits)
		}
	case "hex":
		for _, word := range words {
			fmt.Fprintf(bw, "0x%08x\n", word.Bits)
		}
	case "text":
		for _, word := range words {
			bits := fmt.Sprintf("%032b", word.Bits)
			if nibble {
				bits = nibbles(bits)
			}
			fmt.Fprintln(bw, bits)
		}
	case "bin":
		var buf [4]byte
		for _, word := range words {
			binary.BigEndian.PutUint32(buf[:], word.Bits)
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return bw.Flush()
}
