package store

import (
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Put(FamilySeq, 1, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	val, ok, err := s.Get(FamilySeq, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "hello" {
		t.Fatalf("expected to read back %q, got %q ok=%v", "hello", val, ok)
	}

	if _, ok, _ := s.Get(FamilySeq, 2); ok {
		t.Fatalf("expected id 2 to be absent")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.PutMeta("high_water_event", []byte{0, 0, 0, 0, 0, 0, 0, 42}); err != nil {
		t.Fatal(err)
	}
	val, ok, err := s.GetMeta("high_water_event")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || val[7] != 42 {
		t.Fatalf("expected meta round trip, got %v ok=%v", val, ok)
	}
}

func TestScanFromOrdersAscendingAfterCutoff(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, id := range []uint64{1, 2, 3, 5} {
		if err := s.Put(FamilySeq, id, []byte{byte(id)}); err != nil {
			t.Fatal(err)
		}
	}
	// a different family at the same ids must not leak into the scan.
	if err := s.Put(FamilyStatus, 2, []byte("rejected")); err != nil {
		t.Fatal(err)
	}

	var got []uint64
	err = s.ScanFrom(FamilySeq, 2, func(id uint64, value []byte) error {
		got = append(got, id)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Fatalf("expected [3 5] after cutoff 2, got %v", got)
	}
}
