package features

// coreActionNames is the fixed allow-list of high-value product actions that
// count toward the core-action feature.
var coreActionNames = map[string]bool{
	"profile_completed":      true,
	"date_request_created":   true,
	"date_request_approved":  true,
	"payment_completed":      true,
	"message_sent":           true,
	"verification_completed": true,
}

// pricingViewNames is the fixed allow-list of pricing-page events.
var pricingViewNames = map[string]bool{
	"pricing_view":        true,
	"pricing_page_viewed": true,
	"deposit_info_viewed": true,
}

// IsCoreAction reports whether the event name counts as a core action.
func IsCoreAction(name string) bool { return coreActionNames[name] }

// IsPricingView reports whether the event name counts as a pricing view.
func IsPricingView(name string) bool { return pricingViewNames[name] }
