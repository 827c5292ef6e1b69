// cmd/main.go
package main

import (
	"go-websecurity-api/app"
)

// @title           Go WebSecurity API
// @version         1.0
// @description     JWT session API with rotating refresh tokens, reuse detection and per-IP rate limiting.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
