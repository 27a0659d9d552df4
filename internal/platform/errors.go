package platform

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned by Platform implementations that are not backed by
// the Discord REST API when a channel, message or user does not exist.
var ErrNotFound = errors.New("platform: resource not found")

// IsUnknownChannel reports whether err means the channel no longer exists.
func IsUnknownChannel(err error) bool {
	return isRESTCode(err, discordgo.ErrCodeUnknownChannel)
}

// IsUnknownUser reports whether err means the user could not be resolved.
func IsUnknownUser(err error) bool {
	return isRESTCode(err, discordgo.ErrCodeUnknownUser)
}

func isRESTCode(err error, code int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == code {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
