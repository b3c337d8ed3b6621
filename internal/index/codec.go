package index

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/capvault/capsearch/pkg/e"
	"github.com/vmihailenco/msgpack/v5"
)

// Бинарный формат индекса:
//
//	[4B magic "CAPS"] [4B version]
//	[4B dim] [4B count]
//	[count × dim × 4B float32, little endian]
var flatMagic = [4]byte{'C', 'A', 'P', 'S'}

const flatVersion uint32 = 1

// EncodeFlat сериализует индекс в компактный бинарный формат.
func EncodeFlat(f *Flat) []byte {
	le := binary.LittleEndian

	buf := bytes.NewBuffer(make([]byte, 0, 16+len(f.data)*4))
	buf.Write(flatMagic[:])

	var scratch [4]byte
	le.PutUint32(scratch[:], flatVersion)
	buf.Write(scratch[:])
	le.PutUint32(scratch[:], uint32(f.dim))
	buf.Write(scratch[:])
	le.PutUint32(scratch[:], uint32(f.Len()))
	buf.Write(scratch[:])

	for _, v := range f.data {
		le.PutUint32(scratch[:], math.Float32bits(v))
		buf.Write(scratch[:])
	}

	return buf.Bytes()
}

// DecodeFlat восстанавливает индекс из сериализованного представления.
func DecodeFlat(data []byte) (*Flat, error) {
	le := binary.LittleEndian

	if len(data) < 16 {
		return nil, e.Wrap("index blob is truncated", e.ErrIndexArtifact)
	}

	if !bytes.Equal(data[:4], flatMagic[:]) {
		return nil, e.Wrap("bad magic", e.ErrIndexArtifact)
	}

	if v := le.Uint32(data[4:8]); v != flatVersion {
		return nil, e.Wrap("unsupported index version", e.ErrIndexArtifact)
	}

	dim := int(le.Uint32(data[8:12]))
	count := int(le.Uint32(data[12:16]))

	payload := data[16:]
	if len(payload) != dim*count*4 {
		return nil, e.Wrap("index payload length mismatch", e.ErrIndexArtifact)
	}

	flat := NewFlat(dim)
	flat.data = make([]float32, dim*count)
	for i := range flat.data {
		flat.data[i] = math.Float32frombits(le.Uint32(payload[i*4 : i*4+4]))
	}

	return flat, nil
}

// EncodeIDs сериализует массив идентификаторов крышек (msgpack).
func EncodeIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		ids = []int64{}
	}

	return msgpack.Marshal(ids)
}

// DecodeIDs восстанавливает массив идентификаторов.
func DecodeIDs(data []byte) ([]int64, error) {
	var ids []int64
	if err := msgpack.Unmarshal(data, &ids); err != nil {
		return nil, e.Wrap("identifier array", e.ErrIndexArtifact)
	}

	return ids, nil
}
