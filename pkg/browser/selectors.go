package browser

// The remote UI gives us no stable API, only markup. Every lookup below is
// an ordered candidate list tried in sequence: first match wins, exhaustion
// is a typed failure rather than a silent guess. When the application
// changes its markup these lists are the only place that needs updating.

// queryInputSelectors locate the question input box, covering markup
// revisions and localized placeholder variants.
var queryInputSelectors = []string{
	`textarea.query-box-input`,
	`textarea[aria-label="Query box"]`,
	`textarea[placeholder*="Start typing"]`,
	`textarea[placeholder*="Ask"]`,
	`textarea[placeholder*="Commencez"]`,
	`textarea[placeholder*="Escribe"]`,
	`.query-box textarea`,
}

// generatingSelectors locate the "still generating" indicator shown while
// the answer streams in.
var generatingSelectors = []string{
	`.thinking-indicator`,
	`.generating-indicator`,
	`.answer-loading`,
	`mat-spinner`,
}

// answerSelectors locate answer containers, newest last.
var answerSelectors = []string{
	`.to-user-message-card-content`,
	`.chat-message-pair .to-user-container`,
	`.answer-container .answer-text`,
	`labs-tailwind-structural-element-view-v2`,
}

// authRedirectMarkers appear in the URL when the application bounces an
// unauthenticated visitor to the login flow.
var authRedirectMarkers = []string{
	"accounts.google.com",
	"ServiceLogin",
	"signin",
	"InteractiveLogin",
}
