package deploy

// TemplateRequest provisions a project from a named starter template,
// bypassing the bundling pipeline.
type TemplateRequest struct {
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`
}

// ChangesRequest patches a previously stored file set: a string value
// upserts the file, null deletes it.
type ChangesRequest struct {
	Patch map[string]*string `json:"patch"`
}

// Request selects exactly one deploy mode per call: a full file set, a
// starter template, or a patch against stored source.
type Request struct {
	Files    map[string]string `json:"files,omitempty"`
	Template *TemplateRequest  `json:"template,omitempty"`
	Changes  *ChangesRequest   `json:"changes,omitempty"`

	// ProjectID targets an existing project. Required with Changes,
	// forbidden with Template, optional with Files (absent means a new
	// project is created).
	ProjectID string `json:"project_id,omitempty"`

	// ProjectName names a project created for a files-mode deploy.
	ProjectName string `json:"project_name,omitempty"`

	// Message is an optional deployment message passed to the control
	// plane.
	Message string `json:"message,omitempty"`

	// CompatibilityFlags overrides the manifest's conservative default
	// when non-empty.
	CompatibilityFlags []string `json:"compatibility_flags,omitempty"`
}

// Result is returned for a successful deployment.
type Result struct {
	ProjectID    string   `json:"project_id"`
	DeploymentID string   `json:"deployment_id"`
	Status       string   `json:"status"`
	URL          string   `json:"url,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

func validateRequest(req *Request) *Error {
	modes := 0
	if req.Files != nil {
		modes++
	}
	if req.Template != nil {
		modes++
	}
	if req.Changes != nil {
		modes++
	}
	if modes != 1 {
		return errorf(CodeValidation, "exactly one of files, template, or changes must be provided")
	}

	switch {
	case req.Changes != nil && req.ProjectID == "":
		return errorf(CodeValidation, "changes mode requires project_id")
	case req.Template != nil && req.ProjectID != "":
		return errorf(CodeValidation, "template mode cannot target an existing project: omit project_id")
	case req.Files != nil && len(req.Files) == 0:
		return errorf(CodeValidation, "files must contain at least one file")
	case req.Changes != nil && len(req.Changes.Patch) == 0:
		return errorf(CodeValidation, "changes patch must contain at least one entry")
	}
	return nil
}
