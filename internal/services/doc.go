// Package services holds the error taxonomy shared by darkroom's external
// collaborator clients. The collaborators themselves live in subpackages.
package services
