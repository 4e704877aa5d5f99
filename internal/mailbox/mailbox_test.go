package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageHeaderValue(t *testing.T) {
	msg := &Message{
		ID: "m1",
		Headers: []Header{
			{Name: "From", Value: "news@example.com"},
			{Name: "LIST-UNSUBSCRIBE", Value: "<mailto:u@example.com>"},
			{Name: "List-Unsubscribe", Value: "<mailto:second@example.com>"},
		},
	}

	assert.Equal(t, "news@example.com", msg.HeaderValue("from"))
	assert.Equal(t, "<mailto:u@example.com>", msg.HeaderValue("List-Unsubscribe"))
	assert.Equal(t, "", msg.HeaderValue("Subject"))

	var nilMsg *Message
	assert.Equal(t, "", nilMsg.HeaderValue("From"))
}
