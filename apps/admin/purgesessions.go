package main

import (
	"context"
	"time"
)

func (cli *commandLine) purgeSessions() error {
	n, err := cli.sessionRepo.DeleteExpiredSessions(context.Background(), time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Printf("purged %d expired sessions", n)
	return nil
}
