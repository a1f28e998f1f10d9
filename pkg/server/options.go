package server

import (
	"github.com/smilemakc/wfkernel/internal/config"
	"github.com/smilemakc/wfkernel/internal/infrastructure/logger"
	"github.com/smilemakc/wfkernel/internal/snapshot"
)

// Option is a functional option for configuring the server.
type Option func(*Server) error

// WithConfig sets the server configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) error {
		s.logger = l
		return nil
	}
}

// WithPromotionGate overrides the Snapshot Store's promotion policy (Open
// Question 4); the default is snapshot.NoInFlightConflict.
func WithPromotionGate(gate snapshot.PromotionGate) Option {
	return func(s *Server) error {
		s.promotionGate = gate
		return nil
	}
}
