// Package domain models golf launch-monitor shot records.
//
// # Data Source
//
// Shots arrive as rows of session exports written by the launch monitor
// software (Foresight FSX Live "Stats/Export" CSVs, Rapsodo range exports, or
// the same tables saved as .xlsx). Each row is one ball struck. The ingest
// adapter tags every row with its session file and line before handing it to
// [ParseRawRow].
//
// # Column Conventions
//
// Headers carry their unit in parentheses and a sign convention where the
// value is directional:
//
//	"Push/Pull (deg L-/R+)"            negative = left of target
//	"Club Path (deg out-in-/in-out+)"  negative = out-to-in
//	"Face to Target (deg closed-/open+)"
//	"Offline (yds L-/R+)"
//
// Headers are matched case-insensitively. A small set of metric units is
// accepted and converted on the way in (km/h and m/s to mph, metres to yards),
// see [shotColumns]. Empty cells, "-", "NaN" and anything else that is not a
// number are treated as missing.
//
// # Club Names
//
// Club labels are free text typed on the device ("Driver", " 7 iron", "gap
// wdge"). [CanonicalizeClub] maps them onto a closed set of short codes:
//
//	Dr 3w 5w 3h 4h 5h 3i 4i 5i 6i 7i 8i 9i PW GW SW LW
//
// Anything else becomes [ClubOther], which is outside the closed set; such
// rows are dropped during parsing.
//
// # Derived Metrics
//
// Camera-only sessions leave the club-delivery columns blank. [DeriveMetrics]
// fills them from ball data with fixed ratios keyed by club category:
//
//	club speed      = ball speed / smash (driver 1.55, fairway 1.45, hybrid 1.35, iron/wedge 1.25)
//	impact speed    = club speed * 0.98
//	efficiency      = ball speed / club speed
//	club path       = push/pull * 1.2
//	face to target  = push/pull
//	loft            = nominal static loft of the club
//	total spin      = hypot(back spin, side spin)
//	lie, impact location, closure rate = 0
//
// These are heuristics and are recorded in [Shot.Estimated] so callers can
// tell measured values from estimates.
//
// # ID Generation
//
// Shot IDs are deterministic SHA-256 hashes of session|line|club|ball|carry,
// so re-ingesting the same session files produces the same IDs and the SQLite
// and Kafka sinks can upsert idempotently. See [generateID].
package domain
