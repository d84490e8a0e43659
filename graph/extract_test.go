package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportSpecsJavaScript(t *testing.T) {
	content := `
import React from 'react';
import { Button, Input } from './components/button'
import * as helpers from "./lib/helpers";
import './styles/global.css'
const legacy = require('./legacy/module')
const pkg = require('lodash')
`
	specs := ImportSpecs("src/app.tsx", content)

	// Bare specifiers name packages and are dropped.
	assert.Equal(t, []string{
		"./components/button",
		"./lib/helpers",
		"./styles/global.css",
		"./legacy/module",
	}, specs)
}

func TestImportSpecsJavaScriptDefaultAndNamedClause(t *testing.T) {
	content := `import def, { named } from './mixed'`
	assert.Equal(t, []string{"./mixed"}, ImportSpecs("a.js", content))
}

func TestImportSpecsPython(t *testing.T) {
	content := `
import os
import app.services.indexer
from app.models import User
from .utils import helper
from ..common.types import Result
`
	specs := ImportSpecs("pkg/mod.py", content)

	assert.Equal(t, []string{
		"app/models",
		"./utils",
		"../common/types",
		"os",
		"app/services/indexer",
	}, specs)
}

func TestPythonSpecPath(t *testing.T) {
	tests := []struct {
		module string
		want   string
	}{
		{"a.b.c", "a/b/c"},
		{"os", "os"},
		{".utils", "./utils"},
		{"..common.types", "../common/types"},
		{".", "."},
		{"..", ".."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pythonSpecPath(tt.module), "module %q", tt.module)
	}
}

func TestImportSpecsJava(t *testing.T) {
	content := `
package com.example.app;

import java.util.List;
import static org.junit.Assert.assertEquals;
import com.example.app.service.UserService;

public class App {}
`
	specs := ImportSpecs("src/App.java", content)

	assert.Equal(t, []string{
		"java/util/List",
		"org/junit/Assert/assertEquals",
		"com/example/app/service/UserService",
	}, specs)
}

func TestImportSpecsKotlinWithoutSemicolons(t *testing.T) {
	content := `
package com.example

import com.example.util.Strings
import kotlinx.coroutines.flow.Flow
`
	specs := ImportSpecs("app/Main.kt", content)

	assert.Equal(t, []string{
		"com/example/util/Strings",
		"kotlinx/coroutines/flow/Flow",
	}, specs)
}

func TestImportSpecsGo(t *testing.T) {
	content := `package main

import (
	"fmt"
	util "example.com/app/internal/util"
)

import "example.com/app/single"

func main() { fmt.Println(util.Version, single.Name) }
`
	specs := ImportSpecs("main.go", content)

	assert.Equal(t, []string{
		"fmt",
		"example.com/app/internal/util",
		"example.com/app/single",
	}, specs)
}

func TestImportSpecsUnknownExtension(t *testing.T) {
	// Recognized-but-unextracted languages yield no specifiers.
	assert.Nil(t, ImportSpecs("native/lib.cpp", `#include "lib.h"`))
	assert.Nil(t, ImportSpecs("README.md", "import x from './y'"))
}
