// Package mail turns notification data into HTML mail and hands it to a
// transport. It contains the template renderer for the account lifecycle
// templates and two dispatchers: SMTP through gomail and Amazon SES.
package mail
