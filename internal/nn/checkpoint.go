package nn

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Checkpoint file layout:
//
//	magic "FOLI" | format version (uint32 LE) | header length (uint64 LE)
//	| JSON header | raw tensor payloads, in header order
//
// The file is a single slot: saving overwrites whatever was there.

const (
	checkpointMagic   = "FOLI"
	checkpointVersion = 1
)

type checkpointEntry struct {
	Name  string       `json:"name"`
	DType string       `json:"dtype"`
	Shape tensor.Shape `json:"shape"`
}

type checkpointHeader struct {
	Entries []checkpointEntry `json:"entries"`
}

// SaveState writes a state dict to path, overwriting any existing file.
// Entries are written in sorted name order so the format is
// deterministic.
func SaveState(path string, state map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	header := checkpointHeader{Entries: make([]checkpointEntry, 0, len(names))}
	for _, name := range names {
		t := state[name]
		header.Entries = append(header.Entries, checkpointEntry{
			Name:  name,
			DType: t.DType().String(),
			Shape: t.Shape(),
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint header")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create checkpoint %s", path)
	}
	defer f.Close()

	if _, err := f.Write([]byte(checkpointMagic)); err != nil {
		return errors.Wrap(err, "write checkpoint magic")
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(checkpointVersion)); err != nil {
		return errors.Wrap(err, "write checkpoint version")
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "write checkpoint header length")
	}
	if _, err := f.Write(headerJSON); err != nil {
		return errors.Wrap(err, "write checkpoint header")
	}
	for _, name := range names {
		if _, err := f.Write(state[name].Data()); err != nil {
			return errors.Wrapf(err, "write tensor %q", name)
		}
	}
	return nil
}

// LoadState reads a state dict from path.
func LoadState(path string) (map[string]*tensor.RawTensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint %s", path)
	}
	defer f.Close()

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, errors.Wrap(err, "read checkpoint magic")
	}
	if string(magic) != checkpointMagic {
		return nil, errors.Errorf("not a checkpoint file: bad magic %q", magic)
	}

	var version uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, "read checkpoint version")
	}
	if version != checkpointVersion {
		return nil, errors.Errorf("unsupported checkpoint version %d", version)
	}

	var headerLen uint64
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, errors.Wrap(err, "read checkpoint header length")
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, errors.Wrap(err, "read checkpoint header")
	}
	var header checkpointHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint header")
	}

	state := make(map[string]*tensor.RawTensor, len(header.Entries))
	for _, entry := range header.Entries {
		var dtype tensor.DataType
		switch entry.DType {
		case tensor.Float32.String():
			dtype = tensor.Float32
		case tensor.Int64.String():
			dtype = tensor.Int64
		default:
			return nil, errors.Errorf("tensor %q has unsupported dtype %q", entry.Name, entry.DType)
		}

		raw, err := tensor.NewRaw(entry.Shape, dtype, tensor.CPU)
		if err != nil {
			return nil, errors.Wrapf(err, "allocate tensor %q", entry.Name)
		}
		if _, err := io.ReadFull(f, raw.Data()); err != nil {
			return nil, errors.Wrapf(err, "read tensor %q", entry.Name)
		}
		state[entry.Name] = raw
	}
	return state, nil
}
