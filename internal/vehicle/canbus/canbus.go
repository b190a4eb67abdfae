// Package canbus mirrors actuator commands onto a CAN bus so a bench ECU or
// logger can follow the simulated driver.
package canbus

import (
	"context"
	"fmt"
	"math"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/banshee-data/roadagent/internal/vehicle"
)

// CommandFrameID is the arbitration ID of the actuator command frame.
const CommandFrameID uint32 = 0x200

// Signal layout of the command frame, little endian, 0.001 per bit.
const (
	throttleStart = 0
	brakeStart    = 16
	steeringStart = 32
	signalLength  = 16
	counterStart  = 48
	counterLength = 8
	signalFactor  = 0.001
)

// FrameWriter sends one frame.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// EncodeCommand packs cmd into a command frame. counter is a rolling
// sequence number the receiver uses to detect dropped frames.
func EncodeCommand(cmd vehicle.Command, counter uint8) can.Frame {
	cmd = cmd.Clamp()
	f := can.Frame{ID: CommandFrameID, Length: 8}
	f.Data.SetSignedBitsLittleEndian(throttleStart, signalLength, toRaw(cmd.Throttle))
	f.Data.SetUnsignedBitsLittleEndian(brakeStart, signalLength, uint64(toRaw(cmd.Brake)))
	f.Data.SetSignedBitsLittleEndian(steeringStart, signalLength, toRaw(cmd.Steering))
	f.Data.SetUnsignedBitsLittleEndian(counterStart, counterLength, uint64(counter))
	return f
}

// DecodeCommand unpacks a command frame.
func DecodeCommand(f can.Frame) (vehicle.Command, uint8, error) {
	if f.ID != CommandFrameID {
		return vehicle.Command{}, 0, fmt.Errorf("unexpected frame id 0x%X", f.ID)
	}
	if f.Length < 7 {
		return vehicle.Command{}, 0, fmt.Errorf("command frame too short: %d bytes", f.Length)
	}
	cmd := vehicle.Command{
		Throttle: float64(f.Data.SignedBitsLittleEndian(throttleStart, signalLength)) * signalFactor,
		Brake:    float64(f.Data.UnsignedBitsLittleEndian(brakeStart, signalLength)) * signalFactor,
		Steering: float64(f.Data.SignedBitsLittleEndian(steeringStart, signalLength)) * signalFactor,
	}
	counter := uint8(f.Data.UnsignedBitsLittleEndian(counterStart, counterLength))
	return cmd, counter, nil
}

func toRaw(v float64) int64 {
	return int64(math.Round(v / signalFactor))
}

// Mirror wraps an Actuator and transmits every command it forwards.
type Mirror struct {
	vehicle.Actuator
	w       FrameWriter
	cmd     vehicle.Command
	counter uint8
}

// NewMirror returns a Mirror forwarding to inner and writing to w.
func NewMirror(inner vehicle.Actuator, w FrameWriter) *Mirror {
	return &Mirror{Actuator: inner, w: w}
}

func (m *Mirror) SetThrottle(v float64) {
	m.cmd.Throttle = v
	m.Actuator.SetThrottle(v)
}

func (m *Mirror) SetBrake(v float64) {
	m.cmd.Brake = v
	m.Actuator.SetBrake(v)
}

func (m *Mirror) SetSteering(v float64) {
	m.cmd.Steering = v
	m.Actuator.SetSteering(v)
}

// Flush transmits the command accumulated since the last flush.
func (m *Mirror) Flush(ctx context.Context) error {
	f := EncodeCommand(m.cmd, m.counter)
	m.counter++
	if err := m.w.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("write command frame: %w", err)
	}
	return nil
}

// SocketWriter is a FrameWriter on a SocketCAN interface.
type SocketWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// DialSocket opens iface (for example "vcan0") for transmission.
func DialSocket(ctx context.Context, iface string) (*SocketWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &SocketWriter{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

func (w *SocketWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
