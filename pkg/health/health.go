// Package health aggregates liveness checks for the daemon's /health
// endpoint.
package health

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

// Health is the aggregated result of all registered checks.
type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckerRegistry runs every registered checker and folds the results.
type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{checkers: make([]Checker, 0)}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	overall := StatusHealthy

	for _, checker := range r.checkers {
		result := CheckResult{Timestamp: time.Now(), Status: StatusHealthy}
		if err := checker.Check(ctx); err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			overall = StatusUnhealthy
		}
		results[checker.Name()] = result
	}

	return Health{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// MongoChecker pings the document store.
type MongoChecker struct {
	client *mongo.Client
}

func NewMongoChecker(client *mongo.Client) *MongoChecker {
	return &MongoChecker{client: client}
}

func (c *MongoChecker) Name() string {
	return "mongodb"
}

func (c *MongoChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}
