package recall

import "errors"

// ErrRerankMismatch is returned when a RerankFunc's output length does not
// match the number of documents it was asked to score — an invariant
// violation, fatal to the recall call rather than absorbed.
var ErrRerankMismatch = errors.New("recall: rerank score count does not match document count")

// ErrEmbedRequired is returned when the semantic strategy is requested but
// no EmbedFunc is configured.
var ErrEmbedRequired = errors.New("recall: semantic strategy requires an embed function")

// ErrNegativeCount is returned when a caller-supplied count (limit, token
// budget) is negative.
var ErrNegativeCount = errors.New("recall: count must be non-negative")
