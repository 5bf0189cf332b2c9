package main

import (
	"github.com/tabsdata/tabsdata/internal/launcher"
)

// argumentProducers is the closed enum a worker's declared "arguments"
// keys resolve against (spec §4.2 step 2). Names mirror the URI/_PATH
// environment variables every child also receives, plus two values
// that only exist at argument-resolution time (the worker's own name
// and controller class).
func argumentProducers() map[string]launcher.ArgumentProducer {
	return map[string]launcher.ArgumentProducer{
		"instance-uri":     func(inv launcher.Invocation) (string, error) { return launcher.ToURI(inv.Inherited.Instance), nil },
		"instance-path":    func(inv launcher.Invocation) (string, error) { return launcher.ToPath(inv.Inherited.Instance), nil },
		"repository-uri":   func(inv launcher.Invocation) (string, error) { return launcher.ToURI(inv.Inherited.Repository), nil },
		"repository-path":  func(inv launcher.Invocation) (string, error) { return launcher.ToPath(inv.Inherited.Repository), nil },
		"workspace-uri":    func(inv launcher.Invocation) (string, error) { return launcher.ToURI(inv.Inherited.Workspace), nil },
		"workspace-path":   func(inv launcher.Invocation) (string, error) { return launcher.ToPath(inv.Inherited.Workspace), nil },
		"config-uri":       func(inv launcher.Invocation) (string, error) { return launcher.ToURI(inv.ConfigFolder), nil },
		"config-path":      func(inv launcher.Invocation) (string, error) { return launcher.ToPath(inv.ConfigFolder), nil },
		"work-uri":         func(inv launcher.Invocation) (string, error) { return launcher.ToURI(inv.WorkFolder), nil },
		"work-path":        func(inv launcher.Invocation) (string, error) { return launcher.ToPath(inv.WorkFolder), nil },
		"worker-name":      func(inv launcher.Invocation) (string, error) { return inv.Worker.Name, nil },
		"controller-class": func(inv launcher.Invocation) (string, error) { return string(inv.Class), nil },
	}
}
