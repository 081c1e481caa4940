package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           setupd API
// @version         1.0
// @description     Runs the model and custom-node installer for a ComfyUI workspace and streams its progress.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
