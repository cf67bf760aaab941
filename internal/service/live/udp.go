package live

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"potholewatch/internal/logger"
	"potholewatch/internal/model"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const udpPacketSize = 2048

// DimensionFunc reads the pixel size of an encoded image.
type DimensionFunc func(data []byte) (width, height int, err error)

// UDPSource receives JPEG frames from dashcams streaming over UDP. Each
// packet either starts a frame (SOI marker), continues it, or ends it (EOI
// marker). Only the most recent complete frame is kept; Next hands out each
// frame at most once.
type UDPSource struct {
	conn        *net.UDPConn
	cameraNames map[string]string
	dimensions  DimensionFunc
	logger      *logger.Logger

	mu      sync.Mutex
	latest  *model.Frame
	buffers map[string]*bytes.Buffer
	closed  bool
	done    chan struct{}
}

// ListenUDP starts receiving on port. cameraNames maps sender IPs to vehicle ids.
func ListenUDP(port int, cameraNames map[string]string, dimensions DimensionFunc, logger *logger.Logger) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	s := newUDPSource(conn, cameraNames, dimensions, logger)
	logger.Info("UDP camera receiver started on %s", conn.LocalAddr())
	go s.receive()
	return s, nil
}

func newUDPSource(conn *net.UDPConn, cameraNames map[string]string, dimensions DimensionFunc, logger *logger.Logger) *UDPSource {
	return &UDPSource{
		conn:        conn,
		cameraNames: cameraNames,
		dimensions:  dimensions,
		logger:      logger,
		buffers:     make(map[string]*bytes.Buffer),
		done:        make(chan struct{}),
	}
}

// Addr is the local address the source listens on.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) receive() {
	defer close(s.done)
	buffer := make([]byte, udpPacketSize)

	for {
		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Error reading UDP packet: %v", err)
			continue
		}
		s.handlePacket(remoteAddr.IP.String(), buffer[:n])
	}
}

func (s *UDPSource) handlePacket(ip string, data []byte) {
	cameraName, exists := s.cameraNames[ip]
	if !exists {
		cameraName = "unknown_" + ip
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgBuffer, ok := s.buffers[cameraName]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		s.buffers[cameraName] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	}
	imgBuffer.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return
	}
	fullFrame := make([]byte, imgBuffer.Len())
	copy(fullFrame, imgBuffer.Bytes())
	imgBuffer.Reset()

	frame := model.Frame{Data: fullFrame, Source: "udp:" + ip, CapturedAt: time.Now()}
	if exists {
		frame.VehicleID = cameraName
	}
	s.latest = &frame
}

// Next returns the newest complete frame. ok is false when no new frame
// arrived since the previous call or the frame cannot be decoded.
func (s *UDPSource) Next(ctx context.Context) (model.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, false, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Frame{}, false, net.ErrClosed
	}
	latest := s.latest
	s.latest = nil
	s.mu.Unlock()

	if latest == nil {
		return model.Frame{}, false, nil
	}
	width, height, err := s.dimensions(latest.Data)
	if err != nil {
		s.logger.Warning("Dropping undecodable frame from %s: %v", latest.Source, err)
		return model.Frame{}, false, nil
	}
	latest.Width, latest.Height = width, height
	return *latest, true, nil
}

func (s *UDPSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.conn.Close()
	<-s.done
	return err
}
