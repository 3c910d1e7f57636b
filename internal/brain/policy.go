package brain

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// PolicyFormat identifies a castaways policy file.
const PolicyFormat = "castaways-qnet"

// PolicyVersion is the current policy file layout.
const PolicyVersion = 1

// ErrBadPolicy is returned for a policy stream that cannot be decoded.
var ErrBadPolicy = errors.New("bad policy file")

// PolicyHeader is the human-readable first line of a policy file.
type PolicyHeader struct {
	Format     string    `json:"format"`
	Version    int       `json:"version"`
	Inputs     int       `json:"inputs"`
	Hidden     int       `json:"hidden"`
	Outputs    int       `json:"outputs"`
	Iterations int       `json:"iterations,omitempty"`
	WinRate    float64   `json:"win_rate,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// EncodePolicy writes net to w as zstd(header JSON line + gob body).
func EncodePolicy(w io.Writer, net *Network, hdr PolicyHeader) error {
	if err := net.Validate(); err != nil {
		return err
	}
	hdr.Format = PolicyFormat
	hdr.Version = PolicyVersion
	hdr.Inputs, hdr.Hidden, hdr.Outputs = net.Inputs, net.Hidden, net.Outputs
	if hdr.SavedAt.IsZero() {
		hdr.SavedAt = time.Now().UTC()
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, err := json.Marshal(hdr)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(net); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// DecodePolicy reads a policy stream written by EncodePolicy.
func DecodePolicy(r io.Reader) (*Network, PolicyHeader, error) {
	var hdr PolicyHeader
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, hdr, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, hdr, fmt.Errorf("%w: header: %w", ErrBadPolicy, err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, hdr, fmt.Errorf("%w: header: %w", ErrBadPolicy, err)
	}
	if hdr.Format != PolicyFormat {
		return nil, hdr, fmt.Errorf("%w: format %q", ErrBadPolicy, hdr.Format)
	}
	if hdr.Version != PolicyVersion {
		return nil, hdr, fmt.Errorf("%w: unsupported version %d", ErrBadPolicy, hdr.Version)
	}

	var net Network
	if err := gob.NewDecoder(br).Decode(&net); err != nil {
		return nil, hdr, fmt.Errorf("%w: gob decode: %w", ErrBadPolicy, err)
	}
	if net.Inputs != hdr.Inputs || net.Hidden != hdr.Hidden || net.Outputs != hdr.Outputs {
		return nil, hdr, fmt.Errorf("%w: header and body disagree", ErrShapeMismatch)
	}
	if err := net.Validate(); err != nil {
		return nil, hdr, err
	}
	return &net, hdr, nil
}

// SavePolicy writes net to path, replacing any existing file atomically.
func SavePolicy(path string, net *Network, hdr PolicyHeader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".policy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := EncodePolicy(tmp, net, hdr); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadPolicy reads a policy file.
func LoadPolicy(path string) (*Network, PolicyHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, PolicyHeader{}, err
	}
	defer f.Close()
	return DecodePolicy(f)
}
