package monitor

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/knxtpuart/go-tpuart/internal/logger"
)

const quicWriteTimeout = 5 * time.Second

// QUICSink listens for QUIC connections and pushes one JSON-encoded
// TelegramEvent per stream write to every connected peer. Like
// WebSocketSink, it is strictly outbound: no peer input is read.
type QUICSink struct {
	log logger.Logger

	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.RWMutex
	streams map[*quic.Stream]struct{}
}

// NewQUICSink starts listening on addr ("host:port" UDP) with a
// self-signed certificate and returns the running sink.
func NewQUICSink(addr string, log logger.Logger) (*QUICSink, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	tlsConfig, err := selfSignedTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("monitor: generate tls config: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("monitor: resolve %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("monitor: listen %s: %w", addr, err)
	}
	listener, err := quic.Listen(udpConn, tlsConfig, nil)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("monitor: quic listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &QUICSink{
		log:      log.WithComponent("monitor.quic"),
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		streams:  make(map[*quic.Stream]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"go-tpuart monitor"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"tpuart-monitor"},
	}, nil
}

func (s *QUICSink) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.acceptStream(conn)
	}
}

func (s *QUICSink) acceptStream(conn *quic.Conn) {
	defer s.wg.Done()
	stream, err := conn.AcceptStream(s.ctx)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.streams[stream] = struct{}{}
	s.mu.Unlock()

	<-s.ctx.Done()
	s.mu.Lock()
	delete(s.streams, stream)
	s.mu.Unlock()
	stream.Close()
}

// Publish implements Sink. A write that would block past
// quicWriteTimeout (a stalled or dead peer) is abandoned; that peer
// simply misses the event.
func (s *QUICSink) Publish(ev TelegramEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	framed := append(data, '\n')

	s.mu.RLock()
	streams := make([]*quic.Stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.RUnlock()

	for _, st := range streams {
		st.SetWriteDeadline(time.Now().Add(quicWriteTimeout))
		if _, err := st.Write(framed); err != nil {
			s.log.Debug("quic stream write failed: %v", err)
		}
	}
}

// Close stops accepting new connections and closes all streams.
func (s *QUICSink) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()
	return err
}
