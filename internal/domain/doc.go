// Package domain models harvested social-media posts about fire incidents and
// the records produced once a post is verified.
//
// # Data Source
//
// Posts come from an external browser-automation harvester that runs search
// queries (state and keyword combinations, fire hashtags, and from:account
// queries) and emits one JSON object per post. The harvester is not part of
// this module. See [Targets.SearchQueries] for the queries it is expected to run.
//
// # Identity
//
// A post is identified by its (content, timestamp, author) triple. The same
// triple identifies the verified record derived from it, where it appears as
// (content, published_date, source). Both stores deduplicate on [Key].
//
// Timestamps are kept exactly as harvested. A value that cannot be parsed is
// stored unchanged and excluded later by [Freshness], never repaired.
//
// # Freshness
//
// Two policies are supported and exactly one applies per process:
//
//	elapsed   0 <= now - t <= window (default window 72h)
//	calendar  t falls on today or yesterday in the configured location, t <= now
//
// Future timestamps are never fresh. A trailing "Z" is read as "+00:00" and
// timestamps without an offset are read in the configured location.
//
// # Relevance
//
// A cheap keyword gate runs before any classification call:
//
//	(a) content mentions a fire keyword
//	(b) content mentions a US location (state, city, state hashtag) or a
//	    structural-damage keyword
//
// The gate requires (a) AND (b) by default, or (a) OR (b) when configured.
// Matching is case-insensitive substring matching on the lowered content.
// Passing the gate never marks a post verified.
//
// # Scores
//
// The relevance score is an integer 0-10 when the classifier answer contains a
// standalone number in range. Otherwise the raw answer text is kept so the
// report shows what the classifier actually said. See [Score].
package domain
