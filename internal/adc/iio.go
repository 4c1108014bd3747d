package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// IIOConfig selects the sysfs device and channel indices.
type IIOConfig struct {
	// Device is the IIO device directory, e.g.
	// /sys/bus/iio/devices/iio:device0.
	Device string

	// Channels maps buffer slot to in_voltageN_raw index.
	Channels [Channels]int
}

// IIOSource converts by reading in_voltageN_raw attributes.
type IIOSource struct {
	paths [Channels]string
	done  func(*Buffer)
	q     queue
	log   logrus.FieldLogger
}

// NewIIOSource checks the channel attributes exist and returns a source
// delivering filled buffers to done.
func NewIIOSource(cfg IIOConfig, done func(*Buffer), log logrus.FieldLogger) (*IIOSource, error) {
	s := &IIOSource{
		done: done,
		log:  log.WithField("module", "adc"),
	}
	for i, ch := range cfg.Channels {
		p := filepath.Join(cfg.Device, fmt.Sprintf("in_voltage%d_raw", ch))
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("adc channel %d: %w", ch, err)
		}
		s.paths[i] = p
	}
	return s, nil
}

// Queue adds buf to the conversion queue.
func (s *IIOSource) Queue(buf *Buffer) error {
	return s.q.push(buf)
}

// Trigger converts into the oldest queued buffer on a new goroutine.
func (s *IIOSource) Trigger() error {
	buf, err := s.q.pop()
	if err != nil {
		return err
	}
	go func() {
		if err := s.fill(buf); err != nil {
			// Deliver anyway so the owner re-queues it.
			s.log.WithError(err).Warn("conversion failed")
		}
		if s.done != nil {
			s.done(buf)
		}
	}()
	return nil
}

// Read performs one synchronous conversion outside the queue.
func (s *IIOSource) Read() (Buffer, error) {
	var b Buffer
	err := s.fill(&b)
	return b, err
}

// Close drops queued buffers.
func (s *IIOSource) Close() error {
	s.q.close()
	return nil
}

func (s *IIOSource) fill(buf *Buffer) error {
	for i, p := range s.paths {
		v, err := readRaw(p)
		if err != nil {
			return err
		}
		buf.Raw[i] = v
	}
	return nil
}

func readRaw(path string) (int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return int16(v), nil
}
