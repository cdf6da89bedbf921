package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the New Relic transaction started by nrgin with the
// request id and the payment/order ids in the path. It must run after nrgin.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if rid := GetRequestID(c); rid != "" {
			txn.AddAttribute("request_id", rid)
		}
		for _, p := range c.Params {
			switch p.Key {
			case "id", "order_id", "date":
				txn.AddAttribute(p.Key, p.Value)
			}
		}

		c.Next()

		// Record error if present.
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
