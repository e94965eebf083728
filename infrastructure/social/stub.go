package social

import (
	"context"
	"fmt"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StubPublisher records publishes locally and fabricates post IDs. It
// replaces the real clients in development and in the REST e2e tests.
type StubPublisher struct {
	pf platform.Platform
}

func NewStubPublisher(pf platform.Platform) *StubPublisher {
	return &StubPublisher{pf: pf}
}

func (s *StubPublisher) Platform() platform.Platform { return s.pf }

func (s *StubPublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	postID := fmt.Sprintf("stub-%s-%s", s.pf, uuid.NewString()[:8])
	logrus.Infof("[SOCIAL] (stub) %s <- instance %s (%d chars)", s.pf, instance.ID, len(instance.Content))
	return postID, nil
}
