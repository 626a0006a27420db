// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id looks up a troubleshooting guide in the catalog.
type Id int

const (
	EnvfileNotFoundId Id = iota + 1
	EnvfileParseErrorId
	EnvironmentNotFoundId
	ContainerEngineNotFoundId
	SSHConnectionFailedId
	ConfigLoadFailedId
	LanguageNotSupportedId
	ShareProviderUnavailableId
	PermissionDeniedId
)

type (
	// MarkdownMsg is the Markdown body of a troubleshooting guide.
	MarkdownMsg string

	// HttpLink points at documentation or an external resource.
	HttpLink string

	// Issue is a troubleshooting guide shown when a known failure occurs.
	// The Markdown body is rendered with glamour before display.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render produces the terminal-ready form of the guide, appending any
// doc and external links as a "See also" section.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- " + string(link) + "\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- " + string(link) + "\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	envfileNotFoundIssue = &Issue{
		id: EnvfileNotFoundId,
		mdMsg: `
# No envfile found!

We searched for an 'anyenv.cue' or 'anyenv.toml' file but couldn't find
one in the current directory or any parent directory.

## Things you can try:
- Create one in your project root:
~~~toml
[environments.sandbox]
type = "container"
image = "python:3.13-slim"
~~~

- Or point at one explicitly:
~~~
$ anyenv exec script.py --file /path/to/anyenv.toml --env sandbox
~~~

- Or skip the envfile entirely and assemble an environment from flags:
~~~
$ anyenv exec script.py --type subprocess --language python
~~~`,
	}

	envfileParseErrorIssue = &Issue{
		id: EnvfileParseErrorId,
		mdMsg: `
# Failed to parse envfile!

Your envfile contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE or TOML syntax (missing quotes, braces)
- Unknown field names
- An environment type that is not local, subprocess, container, or ssh

## Things you can try:
- Check the error message above for the specific line and column
- Run with verbose mode for more details:
~~~
$ anyenv --verbose exec script.py --env sandbox
~~~

## Example of a valid environment definition:
~~~toml
[environments.sandbox]
type = "container"
image = "python:3.13-slim"
timeout = "2m"
dependencies = ["requests"]
~~~`,
	}

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Environment not found!

The environment name you passed with --env is not defined in the envfile.

## Things you can try:
- Check the [environments.*] tables in your envfile for typos
- Omit --env to use the envfile's default environment
- List what the envfile defines:
~~~
$ cat anyenv.toml
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

You requested a container environment but no container engine is available.

## Supported container engines:
- **Podman** (rootless containers)
- **Docker**

## Things you can try:
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `
- Install Docker: https://docs.docker.com/get-docker/
- Switch to a different environment type:
~~~
$ anyenv exec script.py --type subprocess
~~~
- Pin your preferred engine in the config:
~~~toml
[exec]
container_engine = "podman"
~~~`,
	}

	sshConnectionFailedIssue = &Issue{
		id: SSHConnectionFailedId,
		mdMsg: `
# SSH connection failed!

Could not connect to the remote host for the ssh environment.

## Common causes:
- Wrong host, port, or user
- No usable key in ~/.ssh (id_ed25519, id_rsa)
- The host key is not in your known_hosts file

## Things you can try:
- Verify the connection works outside anyenv:
~~~
$ ssh user@host
~~~
- Pass explicit credentials:
~~~
$ anyenv exec script.py --type ssh --host host --user user
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the anyenv configuration file.

## Configuration file locations:
- Linux: ~/.config/anyenv/config.toml
- macOS: ~/Library/Application Support/anyenv/config.toml
- Windows: %APPDATA%\anyenv\config.toml

## Things you can try:
- Create a default configuration:
~~~
$ anyenv config init
~~~
- Check the TOML syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/anyenv/config.toml
~~~`,
	}

	languageNotSupportedIssue = &Issue{
		id: LanguageNotSupportedId,
		mdMsg: `
# Language not supported!

The requested language has no interpreter mapping in this environment.

## Supported languages:
- **python**
- **javascript** (node)
- **shell**

## Things you can try:
- Check the --language value for typos
- For subprocess environments, map a custom interpreter in the envfile:
~~~toml
[environments.sandbox.interpreters]
python = "/usr/local/bin/python3.13"
~~~`,
	}

	shareProviderUnavailableIssue = &Issue{
		id: ShareProviderUnavailableId,
		mdMsg: `
# Share provider unavailable!

The paste provider rejected the upload or is missing credentials.

## Provider credentials:
- **gist**: set GITHUB_TOKEN or GH_TOKEN
- **pastebin**: set PASTEBIN_API_KEY
- **paste_rs**: no credentials needed

## Things you can try:
- Export the credential and retry
- Switch providers:
~~~
$ anyenv share notes.md --provider paste_rs
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- Writing to a protected directory
- The container engine requires elevated permissions

## Things you can try:
- Check file and directory permissions
- For containers, ensure you're in the docker/podman group:
~~~
$ sudo usermod -aG docker $USER
~~~
- Use rootless containers with Podman`,
	}

	issues = map[Id]*Issue{
		envfileNotFoundIssue.Id():          envfileNotFoundIssue,
		envfileParseErrorIssue.Id():        envfileParseErrorIssue,
		environmentNotFoundIssue.Id():      environmentNotFoundIssue,
		containerEngineNotFoundIssue.Id():  containerEngineNotFoundIssue,
		sshConnectionFailedIssue.Id():      sshConnectionFailedIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		languageNotSupportedIssue.Id():     languageNotSupportedIssue,
		shareProviderUnavailableIssue.Id(): shareProviderUnavailableIssue,
		permissionDeniedIssue.Id():         permissionDeniedIssue,
	}
)

// Values returns every guide in the catalog, in unspecified order.
func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

// Get returns the guide for id, or nil when the catalog has no entry.
func Get(id Id) *Issue {
	return issues[id]
}
