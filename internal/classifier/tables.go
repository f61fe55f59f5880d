package classifier

// Data tables reproduced verbatim from the source classifier (spec.md §4.4
// requires these exact keyword and domain tables; they are most of this
// package's correctness).

var automatedSenders = map[string]bool{
	"noreply@github.com":          true,
	"notifications@github.com":    true,
	"gitlab@mg.gitlab.com":        true,
	"bitbucket@mg.bitbucket.org":  true,
	"builds@circleci.com":         true,
	"builds@travis-ci.com":        true,
	"no-reply@vercel.com":         true,
	"notify@netlify.com":          true,
	"noreply-dmarc-support@google.com": true,
	"no-reply@sns.amazonaws.com":       true,
	"noreply@google.com":               true,
	"azure-noreply@microsoft.com":      true,
	"alerts@sentry.io":                 true,
	"noreply@pagerduty.com":            true,
	"notifications@datadoghq.com":      true,
	"alertmanager@prometheus.io":       true,
	"noreply@slack.com":                true,
	"notification@asana.com":           true,
	"noreply@trello.com":               true,
	"notifications@linear.app":         true,
	"no-reply@notion.so":               true,
	"noreply@atlassian.com":            true,
	"jira@atlassian.com":               true,
	"noreply@accounts.google.com":      true,
	"account-security-noreply@accountprotection.microsoft.com": true,
	"no-reply@access.watch":                                    true,
}

var marketingESPDomains = map[string]bool{
	"mailchimp.com":        true,
	"mail.mailchimp.com":   true,
	"campaign-archive.com": true,
	"constantcontact.com":  true,
	"mail.beehiiv.com":     true,
	"substack.com":         true,
	"buttondown.email":     true,
	"convertkit.com":       true,
	"mailerlite.com":       true,
	"hubspot.com":          true,
	"drip.com":             true,
	"klaviyo.com":          true,
	"getresponse.com":      true,
	"aweber.com":           true,
	"activecampaign.com":   true,
	"campaignmonitor.com":  true,
	"createsend.com":       true,
	"sendinblue.com":       true,
	"brevo.com":            true,
	"mailjet.com":          true,
	"moosend.com":          true,
	"benchmarkemail.com":   true,
	"keap-mail.com":        true,
	"infusionmail.com":     true,
}

var transactionalESPDomains = map[string]bool{
	"postmarkapp.com":   true,
	"mandrillapp.com":   true,
	"sparkpostmail.com": true,
	"ses.amazonaws.com": true,
	"amazonses.com":     true,
}

var mixedESPDomains = map[string]bool{
	"sendgrid.net":   true,
	"sendgrid.com":   true,
	"mailgun.org":    true,
	"mailgun.com":    true,
	"smtp.com":       true,
	"socketlabs.com": true,
	"pepipost.com":   true,
}

var noreplyLocalParts = []string{
	"noreply",
	"no-reply",
	"no_reply",
	"donotreply",
	"do-not-reply",
	"do_not_reply",
	"notifications",
	"notification",
	"mailer-daemon",
	"postmaster",
	"auto-confirm",
	"auto-reply",
}

var marketingMailers = []string{
	"mailchimp",
	"phpmailer",
	"campaign",
	"sendinblue",
	"brevo",
	"hubspot",
	"klaviyo",
}

var transactionalSubjectKeywords = []string{
	"receipt",
	"invoice",
	"order confirmation",
	"shipping confirmation",
	"delivery notification",
	"delivery update",
	"password reset",
	"reset your password",
	"verify your email",
	"confirm your email",
	"email verification",
	"account verification",
	"two-factor",
	"2fa code",
	"verification code",
	"security code",
	"security alert",
	"sign-in attempt",
	"login attempt",
	"new sign-in",
	"subscription confirmed",
	"payment received",
	"payment confirmation",
	"payment failed",
	"refund",
	"billing statement",
	"your order",
	"shipment",
	"out for delivery",
	"has been delivered",
	"has shipped",
	"renewal notice",
}

var automatedSubjectKeywords = []string{
	"build failed",
	"build succeeded",
	"build passed",
	"pipeline failed",
	"pipeline succeeded",
	"deployment",
	"deployed to",
	"deploy failed",
	"incident",
	"alert:",
	"warning:",
	"error:",
	"monitoring alert",
	"uptime alert",
	"downtime",
	"disk space",
	"cpu usage",
	"new comment on",
	"mentioned you",
	"assigned to you",
	"review requested",
	"merge request",
	"pull request",
	"new issue:",
	"issue closed",
	"commit pushed",
}

var newsletterSubjectKeywords = []string{
	"newsletter",
	"digest",
	"weekly update",
	"daily update",
	"monthly roundup",
	"weekly roundup",
	"this week in",
	"top stories",
	"what's new in",
	"issue #",
	"edition #",
	"curated",
	"weekly picks",
	"daily brief",
}

var calendarPrefixes = []string{
	"invitation:",
	"accepted:",
	"declined:",
	"tentative:",
	"canceled:",
	"cancelled:",
	"updated invitation:",
}

var notificationVerbs = []string{
	"new issue",
	"pull request",
	"merged",
	"closed",
	"opened",
	"commented",
	"assigned",
	"mentioned",
	"review requested",
	"build",
	"failed",
	"passed",
	"deployed",
}

var transactionalPhrases = []string{
	"order number",
	"order #",
	"tracking number",
	"track your",
	"your receipt",
	"amount charged",
	"has been processed",
	"shipping details",
}
