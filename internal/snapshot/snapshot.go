// Package snapshot stores a declaration document as a single portable
// file.
//
// A snapshot is a fixed header followed by the zstd-compressed CBOR
// encoding of a decl.Document:
//
//	offset  size  field
//	0       4     magic "TBSN"
//	4       2     format version (big endian)
//	6       2     reserved, zero
//	8       8     uncompressed payload size (big endian)
//	16      32    keyed BLAKE3 digest of the uncompressed payload
//	48      ...   zstd frame
//
// The CBOR encoding is deterministic, so equal documents produce equal
// payloads and equal fingerprints.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/funvibe/typebind/internal/decl"
)

const (
	// Version is the snapshot format version written by Encode.
	Version = 1

	headerSize = 48

	// maxPayloadSize bounds the allocation made for a snapshot payload.
	maxPayloadSize = 256 << 20
)

var magic = [4]byte{'T', 'B', 'S', 'N'}

var (
	// ErrFormat is returned for data that is not a snapshot.
	ErrFormat = errors.New("not a typebind snapshot")

	// ErrChecksum is returned when the payload does not match the digest
	// recorded in the header.
	ErrChecksum = errors.New("snapshot checksum mismatch")
)

type domainKey [32]byte

// Domain separation keys, ASCII zero-padded to 32 bytes.
var (
	payloadDomainKey = domainKey{
		't', 'y', 'p', 'e', 'b', 'i', 'n', 'd', '.', 's', 'n', 'a', 'p', 's', 'h', 'o',
		't', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0,
	}

	fingerprintDomainKey = domainKey{
		't', 'y', 'p', 'e', 'b', 'i', 'n', 'd', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p',
		'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// keyedHash computes the BLAKE3 keyed hash of data.
func keyedHash(key domainKey, data []byte) [32]byte {
	// NewKeyed only fails for a key that is not 32 bytes long.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// Encode renders doc as a snapshot.
func Encode(doc *decl.Document) ([]byte, error) {
	payload, err := encMode.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding document: %w", err)
	}

	header := make([]byte, headerSize)
	copy(header[0:4], magic[:])
	binary.BigEndian.PutUint16(header[4:6], Version)
	binary.BigEndian.PutUint64(header[8:16], uint64(len(payload)))
	digest := keyedHash(payloadDomainKey, payload)
	copy(header[16:48], digest[:])

	return zstdEncoder.EncodeAll(payload, header), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*decl.Document, error) {
	if len(data) < headerSize || !bytes.Equal(data[0:4], magic[:]) {
		return nil, ErrFormat
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != Version {
		return nil, fmt.Errorf("snapshot: unsupported format version %d", v)
	}
	size := binary.BigEndian.Uint64(data[8:16])
	if size > maxPayloadSize {
		return nil, fmt.Errorf("snapshot: payload size %d exceeds limit %d", size, maxPayloadSize)
	}

	payload, err := zstdDecoder.DecodeAll(data[headerSize:], make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("snapshot: zstd decompress: %w", err)
	}
	if uint64(len(payload)) != size {
		return nil, fmt.Errorf("snapshot: got %d payload bytes, expected %d: %w", len(payload), size, ErrChecksum)
	}
	if digest := keyedHash(payloadDomainKey, payload); !bytes.Equal(digest[:], data[16:48]) {
		return nil, ErrChecksum
	}

	var doc decl.Document
	if err := decMode.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: decoding document: %w", err)
	}
	return &doc, nil
}

// Fingerprint returns a stable hex digest of doc. Equal documents have
// equal fingerprints.
func Fingerprint(doc *decl.Document) (string, error) {
	payload, err := encMode.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprinting document: %w", err)
	}
	sum := keyedHash(fingerprintDomainKey, payload)
	return hex.EncodeToString(sum[:]), nil
}

// Write stores doc as a snapshot file. The file is written to a temporary
// name in the same directory and renamed into place.
func Write(ctx context.Context, path string, doc *decl.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: creating %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", path, err)
	}
	return nil
}

// Read loads a snapshot file.
func Read(ctx context.Context, path string) (*decl.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
