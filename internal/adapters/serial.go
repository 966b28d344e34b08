package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"tictacarm/internal/bootstrap"
	errs "tictacarm/internal/errors"
)

// AdapterSerial is the line-oriented serial link to the arm controller.
// When the port cannot be opened the adapter stays unavailable and writes
// are dropped.
type AdapterSerial struct {
	cfg  *bootstrap.Config
	log  *zap.SugaredLogger
	mu   sync.Mutex
	port serial.Port
}

func NewAdapterSerial(cfg *bootstrap.Config, log *zap.SugaredLogger) *AdapterSerial {
	return &AdapterSerial{
		cfg: cfg,
		log: log,
	}
}

func (a *AdapterSerial) Init(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: a.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(a.cfg.SerialPort, mode)
	if err != nil {
		if ports, listErr := serial.GetPortsList(); listErr == nil {
			a.log.Infof("available serial ports: %v", ports)
		}
		return fmt.Errorf("%w: open %s: %v", errs.ErrLinkUnavailable, a.cfg.SerialPort, err)
	}

	// the controller resets when the port opens
	select {
	case <-time.After(a.cfg.SerialResetDelay()):
	case <-ctx.Done():
		_ = port.Close()
		return ctx.Err()
	}

	a.mu.Lock()
	a.port = port
	a.mu.Unlock()

	a.log.Infof("connected to arm controller on %s at %d baud", a.cfg.SerialPort, a.cfg.BaudRate)
	return nil
}

func (a *AdapterSerial) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port != nil
}

func (a *AdapterSerial) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return 0, errs.ErrLinkUnavailable
	}
	return a.port.Write(p)
}

func (a *AdapterSerial) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	return err
}
