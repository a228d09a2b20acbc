package random

import (
	crand "crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"time"
)

// Order references are meant to be read over the phone, so they stick
// to uppercase letters and digits.
const refCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func init() {
	var b [8]byte
	_, err := crand.Read(b[:])
	if err != nil {
		mrand.Seed(time.Now().UnixNano())
		return
	}
	mrand.Seed(int64(binary.LittleEndian.Uint64(b[:])))
}

func Reference(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = refCharset[mrand.Intn(len(refCharset))]
	}
	return string(b)
}
