package facegate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/facegate/embedding"
	"github.com/hupe1980/facegate/ledger"
	"github.com/hupe1980/facegate/match"
	"github.com/hupe1980/facegate/session"
	"github.com/hupe1980/facegate/template"
)

const (
	templatesDirName = "templates"
	ledgerFileName   = "attendance.log"
)

// RegisterOutcome is the result of a successful registration.
type RegisterOutcome struct {
	// FlowID correlates this registration across logs.
	FlowID string

	// Identity is the enrolled identity.
	Identity string

	// Replaced reports whether a prior template for the identity was
	// overwritten.
	Replaced bool
}

// LoginStatus is the terminal status of a login flow.
type LoginStatus int

const (
	// LoginStatusUnknown is the zero value. A login that fails before
	// reaching a decision (throttled, invalid probe, closed instance)
	// carries it; no outcome ever defaults to authenticated.
	LoginStatusUnknown LoginStatus = iota
	LoginAuthenticated
	LoginRejected
	LoginNoFaceDetected
)

func (s LoginStatus) String() string {
	switch s {
	case LoginStatusUnknown:
		return "unknown"
	case LoginAuthenticated:
		return "authenticated"
	case LoginRejected:
		return "rejected"
	case LoginNoFaceDetected:
		return "no_face_detected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// LoginOutcome is the result of a login flow.
//
// Authentication success and ledger recording are independent: a
// login can be Authenticated while the attendance write was
// suppressed as a duplicate (Record nil, DuplicateSuppressed true).
type LoginOutcome struct {
	// FlowID correlates this login across logs.
	FlowID string

	// Status is the terminal flow status, LoginStatusUnknown when an
	// operational error ended the flow before a decision.
	Status LoginStatus

	// Identity is the authenticated identity. Only set when Status is
	// LoginAuthenticated.
	Identity string

	// Distance is the distance to the matched template. Only
	// meaningful when authenticated.
	Distance float64

	// BestDistance is the minimum distance observed, nil when no
	// templates are enrolled.
	BestDistance *float64

	// Ambiguous reports a rejection caused by the reject margin: the
	// best match was within threshold but a second identity was too
	// close behind it.
	Ambiguous bool

	// Record is the appended attendance record, nil when the write was
	// suppressed as a duplicate.
	Record *ledger.Record

	// DuplicateSuppressed reports that the identity already had a
	// record within the duplicate window, so no new one was appended.
	DuplicateSuppressed bool
}

// Facegate authenticates identities by face embedding and records
// attendance. It is safe for concurrent use.
type Facegate struct {
	store  *template.Store
	ledger *ledger.Ledger
	engine *match.Engine

	threshold    float64
	rejectMargin float64
	limiter      *rate.Limiter
	logger       *Logger
	metrics      MetricsCollector

	closed atomic.Bool
	now    func() time.Time
}

// Open opens (or creates) a facegate instance rooted at dir.
//
// dir holds the template store (templates/) and the attendance log
// (attendance.log). Open performs local file I/O only; ctx is checked
// between loading phases.
func Open(ctx context.Context, dir string, optFns ...Option) (*Facegate, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	store, err := template.Open(filepath.Join(dir, templatesDirName), opts.dimension, func(o *template.Options) {
		o.Codec = opts.codec
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open template store: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ldg, err := ledger.Open(filepath.Join(dir, ledgerFileName), func(o *ledger.Options) {
		o.DuplicateWindow = opts.duplicateWindow
		o.Durability = opts.durability
		o.Codec = opts.codec
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance ledger: %w", err)
	}

	engine, err := match.NewEngine(opts.metric)
	if err != nil {
		_ = ldg.Close()
		return nil, err
	}

	f := &Facegate{
		store:        store,
		ledger:       ldg,
		engine:       engine,
		threshold:    opts.threshold,
		rejectMargin: opts.rejectMargin,
		logger:       opts.logger,
		metrics:      opts.metrics,
		now:          time.Now,
	}
	if opts.loginRate != rate.Inf {
		f.limiter = rate.NewLimiter(opts.loginRate, opts.loginBurst)
	}

	f.logger.Info("facegate opened",
		"dir", dir,
		"identities", store.Len(),
		"records", ldg.Len(),
		"metric", engine.Metric().String(),
		"threshold", opts.threshold,
		"duplicate_window", ldg.DuplicateWindow(),
	)

	return f, nil
}

// Register enrolls (or re-enrolls) an identity with one embedding.
//
// Validation failures (empty identity, malformed embedding) are
// user-correctable: nothing was mutated and the caller may retry with
// corrected input.
func (f *Facegate) Register(ctx context.Context, identity string, emb embedding.Embedding) (RegisterOutcome, error) {
	start := f.now()
	flow := session.NewRegister()
	flow.MustAdvance(session.StateCapturing)

	if f.closed.Load() {
		return RegisterOutcome{}, ErrClosed
	}

	replaced := f.store.Contains(identity)

	err := translateError(f.store.Enroll(identity, emb))
	if err == nil {
		flow.MustAdvance(session.StateSubmitted)
	}
	f.metrics.RecordRegister(f.now().Sub(start), err)
	f.logger.LogRegister(ctx, flow, identity, replaced, err)
	if err != nil {
		return RegisterOutcome{}, err
	}

	return RegisterOutcome{
		FlowID:   flow.ID(),
		Identity: identity,
		Replaced: replaced,
	}, nil
}

// Login authenticates the detections extracted from a single captured
// frame and records attendance on success.
//
// Zero detections terminate at LoginNoFaceDetected without matching.
// With multiple detections only the first is matched; choosing the
// primary face among several is the caller's policy.
//
// A nil error accompanies every defined outcome, including
// rejections. Errors are reserved for operational failures: throttle,
// invalid probe, ledger write failure.
func (f *Facegate) Login(ctx context.Context, detections []embedding.Detection) (LoginOutcome, error) {
	start := f.now()
	flow := session.NewLogin()
	flow.MustAdvance(session.StateCapturing)

	out := LoginOutcome{FlowID: flow.ID()}

	if f.closed.Load() {
		return out, ErrClosed
	}
	if f.limiter != nil && !f.limiter.Allow() {
		return out, ErrThrottled
	}

	if len(detections) == 0 {
		flow.MustAdvance(session.StateNoFaceDetected)
		out.Status = LoginNoFaceDetected
		f.metrics.RecordLogin(out.Status, f.now().Sub(start), nil)
		f.logger.LogLogin(ctx, flow, out, nil)
		return out, nil
	}

	probe := detections[0].Embedding
	if err := embedding.Validate(probe, f.store.Dimension()); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidEmbedding, err)
		f.metrics.RecordLogin(out.Status, f.now().Sub(start), err)
		f.logger.LogLogin(ctx, flow, out, err)
		return out, err
	}

	flow.MustAdvance(session.StateMatching)

	res := f.engine.Match(probe, f.store.Snapshot(), f.threshold)
	out.BestDistance = res.BestDistance

	if res.Matched && f.rejectMargin > 0 && res.SecondDistance != nil &&
		*res.SecondDistance-res.Distance < f.rejectMargin {
		res.Matched = false
		out.Ambiguous = true
	}

	if !res.Matched {
		flow.MustAdvance(session.StateRejected)
		out.Status = LoginRejected
		f.metrics.RecordLogin(out.Status, f.now().Sub(start), nil)
		f.logger.LogLogin(ctx, flow, out, nil)
		return out, nil
	}

	flow.MustAdvance(session.StateAuthenticated)
	out.Status = LoginAuthenticated
	out.Identity = res.Identity
	out.Distance = res.Distance

	appendStart := f.now()
	rec, err := f.ledger.Append(res.Identity, f.now())
	f.metrics.RecordLedgerAppend(f.now().Sub(appendStart), err)

	switch {
	case errors.Is(err, ledger.ErrDuplicateWithinWindow):
		out.DuplicateSuppressed = true
	case err != nil:
		err = fmt.Errorf("attendance record failed: %w", err)
		f.metrics.RecordLogin(out.Status, f.now().Sub(start), err)
		f.logger.LogLogin(ctx, flow, out, err)
		// The identity was confirmed, but the audit write failed; the
		// caller decides whether to treat that as a denied entry.
		return out, err
	default:
		out.Record = &rec
	}

	f.metrics.RecordLogin(out.Status, f.now().Sub(start), nil)
	f.logger.LogLogin(ctx, flow, out, nil)

	return out, nil
}

// Contains reports whether the identity has an enrolled template.
func (f *Facegate) Contains(identity string) bool {
	return f.store.Contains(identity)
}

// Store exposes the template store for administrative surfaces.
func (f *Facegate) Store() *template.Store { return f.store }

// Ledger exposes the attendance ledger, e.g. for rendering recent
// records or a full audit traversal.
func (f *Facegate) Ledger() *ledger.Ledger { return f.ledger }

// Close closes the instance. Templates need no teardown; the ledger
// file is synced and closed.
func (f *Facegate) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.ledger.Close()
}
