package uibridge

import (
	"bytes"
	"testing"
)

type recordingWriter struct {
	frames [][]byte
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	w.frames = append(w.frames, cp)
	return len(b), nil
}

func TestEmitSmallPayloadSingleFrame(t *testing.T) {
	w := &recordingWriter{}
	e := NewEmitter(w)
	if err := e.Emit(EventObjectUpdate, []byte("hello")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(w.frames))
	}
	f, err := DecodeFrame(w.frames[0])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.EventType != EventObjectUpdate || f.Seq != 0 || f.Total != 1 {
		t.Fatalf("unexpected frame header: %+v", f)
	}
	if !bytes.Equal(f.Payload, []byte("hello")) {
		t.Fatalf("unexpected payload: %q", f.Payload)
	}
}

func TestEmitLargePayloadSplitsIntoChunks(t *testing.T) {
	w := &recordingWriter{}
	e := NewEmitter(w)
	payload := bytes.Repeat([]byte{0xAB}, maxChunkPayload*2+10)
	if err := e.Emit(EventMeshContainer, payload); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.frames) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(w.frames))
	}
	for i, raw := range w.frames {
		f, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("DecodeFrame %d: %v", i, err)
		}
		if int(f.Seq) != i || int(f.Total) != 3 {
			t.Fatalf("frame %d: unexpected seq/total %d/%d", i, f.Seq, f.Total)
		}
	}
}

func TestPacketCounterIncrementsAcrossEvents(t *testing.T) {
	w := &recordingWriter{}
	e := NewEmitter(w)
	e.Emit(EventSessionState, []byte("a"))
	e.Emit(EventSessionState, []byte("b"))

	f0, _ := DecodeFrame(w.frames[0])
	f1, _ := DecodeFrame(w.frames[1])
	if f1.PacketCounter != f0.PacketCounter+1 {
		t.Fatalf("expected packet counter to increment: %d -> %d", f0.PacketCounter, f1.PacketCounter)
	}
}

func TestReassemblerReconstructsChunkedPayload(t *testing.T) {
	w := &recordingWriter{}
	e := NewEmitter(w)
	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03}, maxChunkPayload)
	if err := e.Emit(EventTerrainPatch, payload); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	r := NewReassembler()
	var result []byte
	var done bool
	for _, raw := range w.frames {
		f, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		result, done = r.Add(f)
	}
	if !done {
		t.Fatal("expected reassembly to complete after all chunks")
	}
	if !bytes.Equal(result, payload) {
		t.Fatal("reassembled payload does not match original")
	}
}

func TestReassemblerOutOfOrderChunks(t *testing.T) {
	w := &recordingWriter{}
	e := NewEmitter(w)
	payload := bytes.Repeat([]byte{0x9}, maxChunkPayload+5)
	e.Emit(EventAvatarAppearance, payload)

	r := NewReassembler()
	f1, _ := DecodeFrame(w.frames[1])
	if _, done := r.Add(f1); done {
		t.Fatal("did not expect completion after only the second chunk")
	}
	f0, _ := DecodeFrame(w.frames[0])
	result, done := r.Add(f0)
	if !done {
		t.Fatal("expected completion once both chunks arrived")
	}
	if !bytes.Equal(result, payload) {
		t.Fatal("reassembled payload does not match original")
	}
}
