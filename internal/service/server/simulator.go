package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	domain "github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/logger"
	repo "github.com/oshokin/autostand/internal/repository/state"
	"github.com/oshokin/autostand/internal/responselog"
)

// Directions accepted by the actuation methods.
const (
	directionUp   = "Up"
	directionDown = "Down"
)

// Vendor error codes returned by the simulated controller.
const (
	CodeStandBusy           = "STAND_BUSY"
	CodeStandNotFound       = "STAND_NOT_FOUND"
	CodeOperationTimeout    = "OPERATION_TIMEOUT"
	CodeUltrasonicBlocked   = "ULTRASONIC_BLOCKED"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeShuttingDown        = "SHUTTING_DOWN"
)

// minBattery is the lowest level an actuation drains the battery to.
const minBattery domain.Battery = 10

// transaction tracks one actuation.
type transaction struct {
	code string
	done chan struct{}

	// state and err are set before done is closed.
	state *domain.State
	err   error
}

// simulatorOptions configures a simulator.
type simulatorOptions struct {
	standID    int
	motion     time.Duration
	webhookURL string
	obstructed bool
}

// simulator is a single motorized stand with a motion delay, transactions
// and a webhook event feed.
type simulator struct {
	// repo persists the stand state; may be nil.
	repo repo.Repository
	// events receives one line per finished actuation; may be nil.
	events *responselog.Sink
	opts   simulatorOptions

	// mu protects state, moving and transactions.
	mu           sync.Mutex
	state        domain.State
	moving       *transaction
	transactions map[string]*transaction

	closing   chan struct{}
	closeOnce sync.Once
	motions   sync.WaitGroup
}

// newSimulator creates a simulator, restoring the stand from repository when present.
func newSimulator(
	ctx context.Context,
	opts simulatorOptions,
	repository repo.Repository,
	events *responselog.Sink,
) (*simulator, error) {
	s := &simulator{
		repo:   repository,
		events: events,
		opts:   opts,
		state: domain.State{
			ID:                 opts.standID,
			ArmState:           "FOLDED",
			StandState:         "DOWN",
			Battery:            100,
			UltrasonicDetected: domain.No,
		},
		transactions: make(map[string]*transaction),
		closing:      make(chan struct{}),
	}

	if repository == nil {
		return s, nil
	}

	snapshot, err := repository.Load(ctx)

	switch {
	case err == nil:
		for _, st := range snapshot.Stands {
			if st.ID == opts.standID {
				s.state = *st
			}
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep default state.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// Close stops in-flight motions and waits for them.
func (s *simulator) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})

	s.motions.Wait()
}

// status returns a snapshot of the stand.
func (s *simulator) status(ctx context.Context, id int) (*domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkID(id); err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Status requested", "stand_state", s.state.StandState)

	return s.snapshotLocked(), nil
}

// battery returns the battery level.
func (s *simulator) battery(ctx context.Context, id int) (int, error) {
	st, err := s.status(ctx, id)
	if err != nil {
		return 0, err
	}

	return int(st.Battery), nil
}

// actuate starts a motion. With wait it blocks until the motion ends or
// timeout elapses and returns the final state; without it returns the
// transaction code immediately.
func (s *simulator) actuate(
	ctx context.Context,
	id int,
	direction string,
	wait bool,
	timeout time.Duration,
) (any, error) {
	tx, err := s.begin(ctx, id, direction)
	if err != nil {
		return nil, err
	}

	if !wait {
		return tx.code, nil
	}

	return s.await(ctx, tx, timeout)
}

// transactionResult reports a transaction without waiting.
func (s *simulator) transactionResult(code string) (map[string]any, error) {
	tx, err := s.lookup(code)
	if err != nil {
		return nil, err
	}

	select {
	case <-tx.done:
		if tx.err != nil {
			return nil, tx.err
		}

		return map[string]any{"transaction_id": code, "status": "done", "state": tx.state}, nil
	default:
		return map[string]any{"transaction_id": code, "status": "pending"}, nil
	}
}

// waitTransaction blocks until the transaction ends or timeout elapses.
func (s *simulator) waitTransaction(ctx context.Context, code string, timeout time.Duration) (map[string]any, error) {
	tx, err := s.lookup(code)
	if err != nil {
		return nil, err
	}

	st, err := s.await(ctx, tx, timeout)
	if err != nil {
		return nil, err
	}

	return map[string]any{"transaction_id": code, "status": "done", "state": st}, nil
}

func (s *simulator) begin(ctx context.Context, id int, direction string) (*transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkID(id); err != nil {
		return nil, err
	}

	if s.moving != nil {
		return nil, vendorError(CodeStandBusy, codes.Aborted, "Stand busy",
			fmt.Sprintf("stand %d is already moving", id))
	}

	select {
	case <-s.closing:
		return nil, vendorError(CodeShuttingDown, codes.Unavailable, "Shutting down", "controller is stopping")
	default:
	}

	tx := &transaction{
		code: uuid.NewString(),
		done: make(chan struct{}),
	}

	s.moving = tx
	s.transactions[tx.code] = tx
	s.state.Operate = true
	s.state.StandState = "MOVING_" + upper(direction)

	logger.InfoKV(ctx, "Motion started", "stand_id", id, "direction", direction, "transaction", tx.code)

	s.motions.Add(1)

	go s.move(logger.WithKV(context.WithoutCancel(ctx), "transaction", tx.code), tx, direction)

	return tx, nil
}

func (s *simulator) move(ctx context.Context, tx *transaction, direction string) {
	defer s.motions.Done()

	timer := time.NewTimer(s.opts.motion)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.closing:
		s.finish(ctx, tx, direction, vendorError(CodeShuttingDown, codes.Unavailable, "Shutting down", "motion interrupted"))
		return
	}

	if direction == directionDown && s.opts.obstructed {
		s.finish(ctx, tx, direction, vendorError(CodeUltrasonicBlocked, codes.FailedPrecondition, "Obstacle detected",
			"ultrasonic sensor blocked the lowering"))

		return
	}

	s.finish(ctx, tx, direction, nil)
}

// finish records the outcome, persists it, emits the webhook line and
// releases waiters.
func (s *simulator) finish(ctx context.Context, tx *transaction, direction string, failure error) {
	s.mu.Lock()

	s.state.Operate = false

	if failure == nil {
		if direction == directionUp {
			s.state.StandState, s.state.ArmState = "UP", "EXTENDED"
		} else {
			s.state.StandState, s.state.ArmState = "DOWN", "FOLDED"
		}

		if s.state.Battery.Known() {
			s.state.Battery = max(s.state.Battery-10, minBattery)
		}
	} else {
		s.state.StandState = "STOPPED"
		if errors.Is(failure, errUltrasonic) {
			s.state.UltrasonicDetected = domain.Yes
		}
	}

	s.moving = nil
	tx.state = s.snapshotLocked()
	tx.err = failure
	snapshot := &repo.Snapshot{Stands: []*domain.State{s.snapshotLocked()}, UpdatedAt: time.Now()}

	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			logger.ErrorKV(ctx, "Failed to persist stand state", "error", err)
		}
	}

	s.emit(failure)

	logger.InfoKV(ctx, "Motion finished", "stand_state", tx.state.StandState, "failed", failure != nil)

	close(tx.done)
}

func (s *simulator) emit(failure error) {
	if s.events == nil {
		return
	}

	status := "Ok"

	var vendor *domain.RemoteFailure
	if errors.As(failure, &vendor) {
		status = "Error " + vendor.VendorCode
	}

	s.events.Append(fmt.Sprintf("POST %s - %s @ %s", s.opts.webhookURL, status, time.Now().Format("2006/1/2 15:04:05")))
}

func (s *simulator) await(ctx context.Context, tx *transaction, timeout time.Duration) (*domain.State, error) {
	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case <-tx.done:
		return tx.state, tx.err
	case <-expired:
		return nil, vendorError(CodeOperationTimeout, codes.DeadlineExceeded, "Operation timed out",
			fmt.Sprintf("transaction %s still running after %s", tx.code, timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closing:
		return nil, vendorError(CodeShuttingDown, codes.Unavailable, "Shutting down", "controller is stopping")
	}
}

func (s *simulator) lookup(code string) (*transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[code]
	if !ok {
		return nil, vendorError(CodeTransactionNotFound, codes.NotFound, "Unknown transaction",
			fmt.Sprintf("transaction %q does not exist", code))
	}

	return tx, nil
}

func (s *simulator) checkID(id int) error {
	if id != s.opts.standID {
		return vendorError(CodeStandNotFound, codes.NotFound, "Stand not found",
			fmt.Sprintf("stand %d does not exist", id))
	}

	return nil
}

func (s *simulator) snapshotLocked() *domain.State {
	st := s.state
	return &st
}

// errUltrasonic marks obstruction failures.
var errUltrasonic = errors.New("ultrasonic obstruction")

func vendorError(code string, status codes.Code, title, description string) error {
	failure := &domain.RemoteFailure{
		VendorCode:  code,
		Title:       title,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		StatusCode:  status.String(),
	}

	if code == CodeUltrasonicBlocked {
		failure.Err = errUltrasonic
	}

	return failure
}

func upper(direction string) string {
	if direction == directionUp {
		return "UP"
	}

	return "DOWN"
}
