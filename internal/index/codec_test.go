package index

import (
	"errors"
	"testing"

	"github.com/capvault/capsearch/pkg/e"
)

func TestFlatCodecRoundTrip(t *testing.T) {
	f := NewFlat(3)
	_ = f.Add([]float32{1, 0, 0})
	_ = f.Add([]float32{0.5, 0.5, 0})

	decoded, err := DecodeFlat(EncodeFlat(f))
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Dim() != 3 || decoded.Len() != 2 {
		t.Fatalf("decoded dim=%d len=%d, want dim=3 len=2", decoded.Dim(), decoded.Len())
	}

	for pos := 0; pos < f.Len(); pos++ {
		want := f.At(pos)
		got := decoded.At(pos)
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("vec %d[%d] = %f, want %f", pos, i, got[i], want[i])
			}
		}
	}
}

func TestFlatCodecEmptyIndex(t *testing.T) {
	decoded, err := DecodeFlat(EncodeFlat(NewFlat(0)))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Len() != 0 {
		t.Errorf("Len = %d, want 0", decoded.Len())
	}
}

func TestDecodeFlatTruncated(t *testing.T) {
	if _, err := DecodeFlat([]byte{'C', 'A', 'P'}); !errors.Is(err, e.ErrIndexArtifact) {
		t.Fatalf("err = %v, want ErrIndexArtifact", err)
	}
}

func TestDecodeFlatBadMagic(t *testing.T) {
	f := NewFlat(2)
	_ = f.Add([]float32{1, 0})

	data := EncodeFlat(f)
	data[0] = 'X'

	if _, err := DecodeFlat(data); !errors.Is(err, e.ErrIndexArtifact) {
		t.Fatalf("err = %v, want ErrIndexArtifact", err)
	}
}

func TestDecodeFlatPayloadMismatch(t *testing.T) {
	f := NewFlat(2)
	_ = f.Add([]float32{1, 0})

	data := EncodeFlat(f)
	data = data[:len(data)-4]

	if _, err := DecodeFlat(data); !errors.Is(err, e.ErrIndexArtifact) {
		t.Fatalf("err = %v, want ErrIndexArtifact", err)
	}
}

func TestIDsCodecRoundTrip(t *testing.T) {
	ids := []int64{7, 7, 42, 1}

	data, err := EncodeIDs(ids)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeIDs(data)
	if err != nil {
		t.Fatal(err)
	}

	if len(decoded) != len(ids) {
		t.Fatalf("len = %d, want %d", len(decoded), len(ids))
	}
	for i := range ids {
		if decoded[i] != ids[i] {
			t.Errorf("ids[%d] = %d, want %d", i, decoded[i], ids[i])
		}
	}
}

func TestDecodeIDsGarbage(t *testing.T) {
	if _, err := DecodeIDs([]byte{0xc1, 0xff}); !errors.Is(err, e.ErrIndexArtifact) {
		t.Fatalf("err = %v, want ErrIndexArtifact", err)
	}
}
