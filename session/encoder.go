package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 2

// Encode serializes s into the compact binary form stored by RedisStore.
//
// Layout: version byte, then ID, Subject and Role each prefixed by a uvarint
// length, then IssuedAt and ExpiresAt as big-endian int64. Field lengths are
// unbounded so every session MemoryStore accepts also encodes.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 3*binary.MaxVarintLen64 + len(s.ID) + len(s.Subject) + len(s.Role) + 16)

	buf.WriteByte(sessionFormatVersionCurrent)

	var prefix [binary.MaxVarintLen64]byte
	for _, field := range []string{s.ID, s.Subject, string(s.Role)} {
		n := binary.PutUvarint(prefix[:], uint64(len(field)))
		buf.Write(prefix[:n])
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	if s.ID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Subject, err = readString(reader); err != nil {
		return nil, err
	}
	role, err := readString(reader)
	if err != nil {
		return nil, err
	}
	s.Role = Role(role)

	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after session")
	}

	return s, nil
}

func readString(reader *bytes.Reader) (string, error) {
	before := reader.Len()
	n, err := binary.ReadUvarint(reader)
	if err != nil {
		return "", err
	}
	// Only the shortest uvarint form is valid, so Encode(Decode(b)) == b.
	if before-reader.Len() != len(binary.AppendUvarint(nil, n)) {
		return "", errors.New("non-canonical length prefix")
	}
	if n > uint64(reader.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
