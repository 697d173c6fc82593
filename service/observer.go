package service

import (
	"context"
	"log"

	"aijudge-backend/models"
)

// CaseObserver is notified when a case reaches the closed state.
// Observers run off the request path and their failures never surface to
// the caller.
type CaseObserver interface {
	OnCaseClosed(ctx context.Context, c *models.Case) error
}

// notifyObservers dispatches a closed case to every registered observer.
// Each observer receives its own deep copy and runs in its own
// goroutine.
func (s *CaseService) notifyObservers(c *models.Case) {
	for _, obs := range s.observers {
		go func(o CaseObserver, snapshot *models.Case) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Warning: Observer panicked for case %s: %v", snapshot.CaseID, r)
				}
			}()
			if err := o.OnCaseClosed(context.Background(), snapshot); err != nil {
				log.Printf("Warning: Observer failed for case %s: %v", snapshot.CaseID, err)
			}
		}(obs, c.Clone())
	}
}
