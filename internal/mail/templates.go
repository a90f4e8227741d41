package mail

import (
	"fmt"
	"html"
)

// VerificationEmail builds a message carrying a one-time code and the
// equivalent verification link.
func VerificationEmail(to, subject, heading, otp, verifyURL string) Message {
	text := fmt.Sprintf("%s\n\nHere's your verification code: %s\n\nOr click the link:\n%s\n", heading, otp, verifyURL)

	body := fmt.Sprintf(`<h1>%s</h1>
<p>Here's your verification code: <strong>%s</strong></p>
<p>Or click the link:</p>
<p><a href="%s">%s</a></p>`,
		html.EscapeString(heading),
		html.EscapeString(otp),
		html.EscapeString(verifyURL),
		html.EscapeString(verifyURL),
	)

	return Message{To: to, Subject: subject, Text: text, HTML: body}
}

// EmailChangedNotice tells the previous address that the account email changed.
func EmailChangedNotice(to, username string) Message {
	text := fmt.Sprintf("Your Epic Notes email has been changed.\n\nThe email address for the account %q was changed. "+
		"If you did not make this change, contact support immediately.\n", username)

	body := fmt.Sprintf(`<h1>Your Epic Notes email has been changed</h1>
<p>The email address for the account <strong>%s</strong> was changed.</p>
<p>If you did not make this change, contact support immediately.</p>`, html.EscapeString(username))

	return Message{To: to, Subject: "Epic Notes email changed", Text: text, HTML: body}
}
