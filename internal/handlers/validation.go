package handlers

import "github.com/go-playground/validator/v10"

// Shared validator instance; struct tag rules live on the request types.
var validate = validator.New()
