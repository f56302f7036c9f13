package i18n

import (
	"reflect"
	"testing"
)

func TestGetFallsBackToKey(t *testing.T) {
	if got := Get("NoSuchMessage"); got != "NoSuchMessage" {
		t.Fatalf("got %q", got)
	}
}

func TestCataloguesAreComplete(t *testing.T) {
	en := reflect.ValueOf(messagesEN)
	zh := reflect.ValueOf(messagesZH)
	for i := 0; i < en.NumField(); i++ {
		name := en.Type().Field(i).Name
		if en.Field(i).String() == "" {
			t.Errorf("en message %s is empty", name)
		}
		if zh.Field(i).String() == "" {
			t.Errorf("zh message %s is empty", name)
		}
	}
}

func TestSetLanguage(t *testing.T) {
	defer SetLanguage(LangEN)
	SetLanguage(LangZH)
	if GetLanguage() != LangZH || Get("LoopStopped") != messagesZH.LoopStopped {
		t.Fatalf("zh not active")
	}
}
