package pktline

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexDecode(t *testing.T) {
	decode := func(s string) (int, error) {
		var b [lenSize]byte
		copy(b[:], s)
		return hexDecode(b)
	}
	for in, want := range map[string]int{"0000": 0, "0014": 20, "ffff": 65535, "ABCD": 43981} {
		got, err := decode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := decode("wwww")
	assert.ErrorIs(t, err, ErrInvalidPktLen)
}

func TestScan(t *testing.T) {
	s := NewScanner(strings.NewReader("001e# service=git-upload-pack\n0008NAK\n"))
	require.True(t, s.Scan())
	assert.Equal(t, "# service=git-upload-pack\n", s.Text())
	require.True(t, s.Scan())
	assert.Equal(t, []byte("NAK\n"), s.Bytes())
	require.False(t, s.Scan())
	require.NoError(t, s.Err())
}

func TestScanStopsAtFlush(t *testing.T) {
	s := NewScanner(strings.NewReader("0008one\00000008two\n"))
	require.True(t, s.Scan())
	assert.Equal(t, "one\000", s.Text())
	// the flush ends the scan, lines after it are not surfaced
	require.False(t, s.Scan())
	require.False(t, s.Scan())
	require.NoError(t, s.Err())
}

func TestScanInvalidLength(t *testing.T) {
	s := NewScanner(strings.NewReader("zzzzpayload"))
	require.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), ErrInvalidPktLen)

	s = NewScanner(strings.NewReader("0003"))
	require.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), ErrInvalidPktLen)
}

func TestScanTruncatedPayload(t *testing.T) {
	s := NewScanner(strings.NewReader("0010abc"))
	require.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), io.ErrUnexpectedEOF)
}

func TestEncodeScanRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("0000000000000000000000000000000000000000 capabilities^{}\x00report-status\n"),
		{0x00, 0x01, 0xff, 0xfe},
		[]byte("ng refs/heads/main protected branch - deletion not allowed\n"),
	}
	var b bytes.Buffer
	e := NewEncoder(&b)
	for _, p := range payloads {
		require.NoError(t, e.Encode(p))
	}
	require.NoError(t, e.Flush())

	s := NewScanner(&b)
	for _, p := range payloads {
		require.True(t, s.Scan())
		assert.Equal(t, p, s.Bytes())
	}
	require.False(t, s.Scan())
	require.NoError(t, s.Err())
}
