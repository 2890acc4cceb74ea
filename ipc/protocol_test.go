package ipc

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	env, err := NewEnvelope(TypeProduce, ProduceCommand{Item: "house", Scope: 3, Place: true, X: 4, Y: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteEnvelope(&buf, env); err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[:4]); int(got) != buf.Len()-4 {
		t.Fatalf("length prefix %d, payload %d", got, buf.Len()-4)
	}

	back, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatal(err)
	}
	var cmd ProduceCommand
	if err := back.Decode(&cmd); err != nil {
		t.Fatal(err)
	}
	if back.Type != TypeProduce || cmd.Item != "house" || cmd.Scope != 3 || !cmd.Place || cmd.X != 4 {
		t.Errorf("got %s %+v", back.Type, cmd)
	}
}

func TestReadEnvelopeRejectsBadLength(t *testing.T) {
	for _, n := range []uint32{0, maxFrame + 1} {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, n)
		if _, err := ReadEnvelope(&buf); err == nil {
			t.Errorf("length %d accepted", n)
		}
	}
}

func TestReadLoopReplies(t *testing.T) {
	server, client := net.Pipe()
	conn := NewConnection(server, nil)
	conn.RegisterHandler(TypeHello, func(env Envelope) (*Envelope, error) {
		var hello HelloMessage
		if err := env.Decode(&hello); err != nil {
			return nil, err
		}
		conn.Player = hello.Player
		ack, err := NewEnvelope(TypeAck, AckMessage{Status: StatusOK})
		return &ack, err
	})
	done := make(chan struct{})
	go func() {
		conn.ReadLoop()
		close(done)
	}()

	hello, _ := NewEnvelope(TypeHello, HelloMessage{Player: "p1", Faction: "ai"})
	if err := WriteEnvelope(client, hello); err != nil {
		t.Fatal(err)
	}
	resp, err := ReadEnvelope(client)
	if err != nil {
		t.Fatal(err)
	}
	var ack AckMessage
	if err := resp.Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if resp.Type != TypeAck || ack.Status != StatusOK {
		t.Errorf("reply %s %+v", resp.Type, ack)
	}

	client.Close()
	<-done
	if conn.Player != "p1" {
		t.Errorf("player = %q", conn.Player)
	}
}

func TestReadLoopStops(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewConnection(server, nil)
	conn.RegisterHandler(TypeGoodbye, func(env Envelope) (*Envelope, error) {
		return nil, ErrStop
	})
	done := make(chan error, 1)
	go func() { done <- conn.ReadLoop() }()

	bye, _ := NewEnvelope(TypeGoodbye, GoodbyeMessage{Reason: "match over"})
	if err := WriteEnvelope(client, bye); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("ReadLoop = %v, want a clean stop", err)
	}
	if _, err := ReadEnvelope(client); err == nil {
		t.Error("connection still open after stop")
	}
}
