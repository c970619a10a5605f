//go:build !whisper

package stt

// RegisterNative is a no-op unless built with -tags whisper.
func RegisterNative(_ *Registry, _ *ModelStore) {}
