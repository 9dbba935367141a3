// Package facegate authenticates people by face embedding and keeps
// an append-only attendance ledger.
//
// Facegate is the core behind a capture-and-login kiosk: an external
// provider turns camera frames into fixed-length embeddings, and
// facegate owns everything with real invariants — one template per
// enrolled identity, deterministic match decisions, duplicate-safe
// attendance recording, and a durable, gapless audit trail. Camera
// handling, image decoding, and the embedding model itself stay
// outside.
//
// # Quick Start
//
//	ctx := context.Background()
//	fg, _ := facegate.Open(ctx, "./data")
//	defer fg.Close()
//
//	// Enroll: one identity, one embedding.
//	fg.Register(ctx, "A123", emb)
//
//	// Login: detections from one captured frame.
//	out, _ := fg.Login(ctx, detections)
//	switch out.Status {
//	case facegate.LoginAuthenticated:
//	    // out.Identity, out.Record
//	case facegate.LoginRejected, facegate.LoginNoFaceDetected:
//	}
//
// # Matching
//
// The probe is compared against every enrolled template using the
// configured metric (Euclidean by default). The minimum distance
// wins; ties break to the lexicographically smallest identity, so the
// decision never depends on enumeration order. The accept threshold
// is calibration-sensitive and deployment-configurable.
//
// # Durability
//
// Templates are one JSON file per identity, replaced atomically with
// write-then-rename. The attendance log is append-only, one JSON
// record per line, fsynced per append by default; a torn record from
// a crash is discarded on reopen before any reader can see it.
//
// # Key Features
//
//   - Deterministic minimum-distance matching with tie-break
//   - Duplicate-suppression window for repeat logins (default 60s)
//   - Strictly increasing, gapless ledger sequence numbers
//   - Per-entry corruption isolation on load
//   - Compressed backup bundles, locally or to S3-compatible storage
package facegate
