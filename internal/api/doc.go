// Package api provides the payment sandbox REST API.
//
//	@title						Payment Sandbox API
//	@version					1.0
//	@description				Credential and webhook trust API for the payment sandbox
//	@BasePath					/
//	@securityDefinitions.apikey	SessionAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						x-sandbox-key
package api
