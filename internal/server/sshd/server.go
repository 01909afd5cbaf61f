// Package sshd is the transport and auth layer: an SSH server that
// authenticates connections by public key and hands each established
// channel, bound to a user identity, to the session layer. Connecting as
// register:<name> enrolls a new account instead of opening a session.
package sshd

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/cryptox"
	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/models"
	"github.com/itter-sh/itter/internal/server/render"
	"github.com/itter-sh/itter/internal/server/repositories/users"
	"github.com/itter-sh/itter/internal/server/session"
	"github.com/itter-sh/itter/internal/server/social"
)

const registerPrefix = "register:"

// permission extension keys carried from auth to channel handling.
const (
	extUserID      = "itter-user-id"
	extRegister    = "itter-register"
	extPublicKey   = "itter-public-key"
	extFingerprint = "itter-fingerprint"
)

type Server struct {
	addr     string
	signer   ssh.Signer
	userRepo users.Repository
	social   *social.Service
	sessions *session.Manager
	renderer *render.Renderer
	logger   logging.Logger

	wg sync.WaitGroup
}

func NewServer(addr string, signer ssh.Signer, userRepo users.Repository, socialSvc *social.Service,
	sessions *session.Manager, renderer *render.Renderer, logger logging.Logger) *Server {
	return &Server{
		addr:     addr,
		signer:   signer,
		userRepo: userRepo,
		social:   socialSvc,
		sessions: sessions,
		renderer: renderer,
		logger:   logger.With("module", "sshd"),
	}
}

// LoadOrCreateHostKey reads the host key from path, generating and
// persisting a fresh ed25519 key on first start.
func LoadOrCreateHostKey(path string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing host key %s: %w", path, err)
		}
		return signer, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading host key %s: %w", path, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("encoding host key: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("writing host key %s: %w", path, err)
	}
	return ssh.NewSignerFromKey(priv)
}

// Run accepts connections until ctx is cancelled, then closes the listener
// and waits for in-flight sessions to finish.
func (s *Server) Run(ctx context.Context) error {
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return s.authenticate(ctx, meta, key)
		},
	}
	cfg.AddHostKey(s.signer)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.logger.Info(ctx, "listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn, cfg)
		}()
	}

	s.wg.Wait()
	s.logger.Info(ctx, "stopped")
	return nil
}

// authenticate resolves the SSH username. register:<name> is always let
// through so the channel handler can run enrollment; anything else must
// name an existing user whose stored fingerprint matches the offered key.
func (s *Server) authenticate(ctx context.Context, meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	fp := cryptox.Fingerprint(key)

	if name, ok := strings.CutPrefix(meta.User(), registerPrefix); ok {
		return &ssh.Permissions{Extensions: map[string]string{
			extRegister:    name,
			extPublicKey:   cryptox.MarshalAuthorizedKey(key),
			extFingerprint: fp,
		}}, nil
	}

	user, err := s.userRepo.GetByUsername(ctx, meta.User())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("unknown user %q", meta.User())
		}
		return nil, err
	}
	if !keyMatches(user, key) {
		s.logger.Warn(ctx, "key mismatch", "user", user.Username, "offered", fp)
		return nil, fmt.Errorf("public key does not match the one enrolled for %q", user.Username)
	}
	return &ssh.Permissions{Extensions: map[string]string{extUserID: user.ID}}, nil
}

// keyMatches compares the offered key against the enrolled one. The stored
// authorized_keys line is authoritative; the fingerprint column covers rows
// whose key line does not parse.
func keyMatches(user *models.User, offered ssh.PublicKey) bool {
	if stored, err := cryptox.ParseAuthorizedKey([]byte(user.PublicKey)); err == nil {
		return bytes.Equal(stored.Marshal(), offered.Marshal())
	}
	return user.Fingerprint == cryptox.Fingerprint(offered)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		s.logger.Debug(ctx, "handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		_ = conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		ch, chReqs, err := newChan.Accept()
		if err != nil {
			s.logger.Warn(ctx, "channel accept failed", "error", err)
			continue
		}
		s.handleChannel(ctx, sconn, ch, chReqs)
		return // one session channel per connection
	}
}

// handleChannel answers the usual terminal setup requests, then either
// runs enrollment or opens an interactive session.
func (s *Server) handleChannel(ctx context.Context, sconn *ssh.ServerConn, ch ssh.Channel, reqs <-chan *ssh.Request) {
	go func() {
		for req := range reqs {
			switch req.Type {
			case "pty-req", "shell", "env", "window-change":
				if req.WantReply {
					_ = req.Reply(true, nil)
				}
			default:
				if req.WantReply {
					_ = req.Reply(false, nil)
				}
			}
		}
	}()

	remoteIP := remoteIP(sconn.RemoteAddr())
	tc := newTermConn(ch, remoteIP)
	defer func() {
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
		_ = tc.Close()
	}()

	ext := sconn.Permissions.Extensions
	if name, ok := ext[extRegister]; ok {
		s.register(ctx, tc, name, ext[extPublicKey], ext[extFingerprint])
		return
	}

	user, err := s.userRepo.GetByID(ctx, ext[extUserID])
	if err != nil {
		s.logger.Error(ctx, "authenticated user vanished", "user_id", ext[extUserID], "error", err)
		_ = tc.Write(s.renderer.Error("temporary problem, try again"))
		return
	}
	s.sessions.Open(ctx, tc, user)
}

func (s *Server) register(ctx context.Context, tc *termConn, name, publicKey, fingerprint string) {
	user, err := s.social.Register(ctx, name, publicKey, fingerprint)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrUsernameTaken):
			_ = tc.Write(s.renderer.Error(fmt.Sprintf("username %q is taken", name)))
		case errors.Is(err, common.ErrValidation):
			_ = tc.Write(s.renderer.Error("usernames are 3-20 characters: letters, digits, underscore"))
		default:
			s.logger.Error(ctx, "registration failed", "username", name, "error", err)
			_ = tc.Write(s.renderer.Error("temporary problem, try again"))
		}
		return
	}
	_ = tc.Write(s.renderer.RegisterSuccess(user.Username, user.Fingerprint))
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

var _ session.Conn = (*termConn)(nil)
