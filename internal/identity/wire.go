// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package identity

import (
	"bytes"
	"encoding/json"

	"github.com/samber/oops"
)

// Wire is the JSON shape of an identity as exchanged with the remote
// service and stored in the session cache.
type Wire struct {
	ID           int64    `json:"id" jsonschema:"minimum=1"`
	Name         string   `json:"name"`
	Email        string   `json:"email" jsonschema:"minLength=3"`
	Role         string   `json:"role,omitempty" jsonschema:"enum=student,enum=faculty,enum=principal,enum=admin"`
	RollID       string   `json:"roll_id,omitempty"`
	StudentClass string   `json:"student_class,omitempty"`
	Department   string   `json:"department,omitempty"`
	Subjects     []string `json:"subjects,omitempty"`
}

// ToWire converts an identity to its wire form.
func ToWire(id Identity) (Wire, error) {
	if id == nil {
		return Wire{}, oops.Code("IDENTITY_NIL").Errorf("identity is nil")
	}
	p := id.Base()
	w := Wire{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Role:  string(id.Role()),
	}
	switch v := id.(type) {
	case *Student:
		w.RollID = v.RollID
		w.StudentClass = v.Class
		w.Subjects = cloneStrings(v.Subjects)
	case *Faculty:
		w.Department = v.Department
		w.Subjects = cloneStrings(v.Subjects)
	case *Principal, *Admin:
	default:
		return Wire{}, oops.Code("IDENTITY_INVALID_ROLE").
			With("type", v).
			Errorf("unsupported identity variant")
	}
	return w, nil
}

// FromWire builds the identity variant described by w. fallback is used
// when w carries no role, which happens for role-scoped endpoints.
func FromWire(w Wire, fallback Role) (Identity, error) {
	role := Role(w.Role)
	if w.Role == "" {
		role = fallback
	}
	p := Profile{ID: w.ID, Name: w.Name, Email: w.Email}
	if err := validateProfile(p); err != nil {
		return nil, err
	}
	switch role {
	case RoleStudent:
		return &Student{
			Profile:  p,
			RollID:   w.RollID,
			Class:    w.StudentClass,
			Subjects: cloneStrings(w.Subjects),
		}, nil
	case RoleFaculty:
		return &Faculty{
			Profile:    p,
			Department: w.Department,
			Subjects:   cloneStrings(w.Subjects),
		}, nil
	case RolePrincipal:
		return &Principal{Profile: p}, nil
	case RoleAdmin:
		return &Admin{Profile: p}, nil
	default:
		return nil, oops.Code("IDENTITY_INVALID_ROLE").
			With("role", w.Role).
			Errorf("unknown role %q", w.Role)
	}
}

// Decode validates data against the identity schema and builds the
// variant it describes.
func Decode(data []byte, fallback Role) (Identity, error) {
	if err := ValidateBlob(data); err != nil {
		return nil, err
	}
	var w Wire
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, oops.Code("IDENTITY_DECODE_FAILED").Wrap(err)
	}
	return FromWire(w, fallback)
}

// Encode returns the JSON wire form of id.
func Encode(id Identity) ([]byte, error) {
	w, err := ToWire(id)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, oops.Code("IDENTITY_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
