package main

// General API documentation for swaggo. Regenerate with `swag init`.
//
// @title           voiceforged API
// @version         1.0
// @description     HTTP API for neural text-to-speech: preset voices, voice design and voice cloning.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
