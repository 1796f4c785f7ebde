// Package api serves the indexed security token state over HTTP.
//
// @title SecTokenIndexer API
// @version 1.0
// @description Events, locked positions and notifications indexed from security token,
// @description exchange and token list contracts, plus a relay for signed transactions.
// @contact.name SecTokenIndexer maintainers
// @contact.url https://github.com/goran-ethernal/SecTokenIndexer
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
// @tag.name events
// @tag.description Indexed contract events by kind
// @tag.name notifications
// @tag.description Per-address user notifications
// @tag.name relay
// @tag.description Raw transaction relay to the chain provider
package api
