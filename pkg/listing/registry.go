package listing

import "fmt"

// ByName returns the Parser registered for name, one of "nginx",
// "apache-f2", "lighttpd", "caddy", "directory-lister" or "docker". These
// are the fixed set of dialects tsumugu understands; there is no plugin
// mechanism for adding new ones at runtime.
func ByName(name string) (Parser, error) {
	switch name {
	case "nginx":
		return NginxParser{}, nil
	case "apache-f2":
		return ApacheF2Parser{}, nil
	case "lighttpd":
		return LighttpdParser{}, nil
	case "caddy":
		return CaddyParser{}, nil
	case "directory-lister":
		return DirectoryListerParser{}, nil
	case "docker":
		return DockerParser{}, nil
	default:
		return nil, fmt.Errorf("listing: unknown parser %q", name)
	}
}

// Names lists the supported parser identifiers in the order they should be
// presented in --help output.
func Names() []string {
	return []string{"nginx", "apache-f2", "lighttpd", "caddy", "directory-lister", "docker"}
}
